package usecase

import (
	"fmt"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

// fuseVerdict combines the local classification with the optional model
// verdict into the final per-image result.
//
// Precedence: a thermal classification short-circuits everything (the model
// never saw the image); otherwise a successful model verdict is
// authoritative and the local probability is carried as auxiliary context
// only; a failed model call degrades to the local heuristic with the error
// surfaced.
func fuseVerdict(
	img *domain.ImageUpload,
	cls domain.Classification,
	verdict *domain.ModelVerdict,
	callErr error,
) domain.ImageVerdict {
	out := domain.ImageVerdict{
		Filename:             img.Filename,
		Width:                img.Width,
		Height:               img.Height,
		LocalFireProbability: cls.FireProbability,
		IsThermal:            cls.IsThermal,
	}

	switch {
	case cls.IsThermal:
		confidence := clamp01(1 - cls.FireProbability)
		out.FireDetected = false
		out.Confidence = &confidence
		out.AnalysisSummary = "Thermal image detected and skipped from external analysis."
		out.Source = domain.SourceLocalHeuristic

	case verdict != nil:
		out.FireDetected = verdict.FireDetected
		out.Confidence = verdict.Confidence
		out.AnalysisSummary = verdict.Summary
		out.ModelName = verdict.ModelName
		latency := verdict.LatencyMS
		out.LatencyMS = &latency
		out.Raw = verdict.Raw
		out.Source = domain.SourceModel

	default:
		probability := cls.FireProbability
		out.FireDetected = probability >= 0.5
		out.Confidence = &probability
		out.AnalysisSummary = fmt.Sprintf(
			"Analysis degraded: external model unavailable; local heuristic estimates a %.1f%% fire probability.",
			probability*100,
		)
		out.Source = domain.SourceError
		if callErr != nil {
			out.Error = callErr.Error()
		}
	}

	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
