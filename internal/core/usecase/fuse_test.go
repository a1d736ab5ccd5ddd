package usecase

import (
	"errors"
	"strings"
	"testing"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

func fuseInput() (*domain.ImageUpload, domain.Classification) {
	img := &domain.ImageUpload{
		Filename: "scene.jpg",
		MimeType: "image/jpeg",
		Format:   "jpeg",
		Width:    640,
		Height:   480,
	}
	return img, domain.Classification{FireProbability: 0.3}
}

func TestFuseVerdict_ThermalShortCircuit(t *testing.T) {
	img, cls := fuseInput()
	cls.IsThermal = true
	cls.FireProbability = 0.2

	// A model verdict must be ignored for thermal images even if present.
	verdict := &domain.ModelVerdict{FireDetected: true, Summary: "flames"}
	out := fuseVerdict(img, cls, verdict, nil)

	if out.FireDetected {
		t.Fatal("thermal image must not report fire")
	}
	if out.Source != domain.SourceLocalHeuristic {
		t.Fatalf("source = %q, want %q", out.Source, domain.SourceLocalHeuristic)
	}
	if out.Confidence == nil || *out.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", out.Confidence)
	}
	if !out.IsThermal {
		t.Fatal("is_thermal flag lost")
	}
	if out.ModelName != "" || out.LatencyMS != nil {
		t.Fatal("model fields must stay empty for thermal images")
	}
}

func TestFuseVerdict_ModelAuthoritative(t *testing.T) {
	img, cls := fuseInput()
	cls.FireProbability = 0.9 // model verdict wins regardless

	confidence := 0.15
	verdict := &domain.ModelVerdict{
		FireDetected: false,
		Confidence:   &confidence,
		Summary:      "No smoke or flame visible.",
		ModelName:    "qwen-vl-max",
		LatencyMS:    412.5,
	}
	out := fuseVerdict(img, cls, verdict, nil)

	if out.FireDetected {
		t.Fatal("model said no fire")
	}
	if out.Source != domain.SourceModel {
		t.Fatalf("source = %q, want %q", out.Source, domain.SourceModel)
	}
	if out.Confidence == nil || *out.Confidence != 0.15 {
		t.Fatalf("confidence = %v, want 0.15", out.Confidence)
	}
	if out.LocalFireProbability != 0.9 {
		t.Fatalf("local probability = %v, want 0.9 carried through", out.LocalFireProbability)
	}
	if out.LatencyMS == nil || *out.LatencyMS != 412.5 {
		t.Fatalf("latency = %v, want 412.5", out.LatencyMS)
	}
}

func TestFuseVerdict_DegradedFallback(t *testing.T) {
	img, cls := fuseInput()

	tests := []struct {
		name         string
		probability  float64
		wantDetected bool
	}{
		{"high local probability", 0.7, true},
		{"low local probability", 0.3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls.FireProbability = tt.probability
			out := fuseVerdict(img, cls, nil, errors.New("model unavailable"))

			if out.FireDetected != tt.wantDetected {
				t.Fatalf("fire_detected = %v, want %v", out.FireDetected, tt.wantDetected)
			}
			if out.Source != domain.SourceError {
				t.Fatalf("source = %q, want %q", out.Source, domain.SourceError)
			}
			if out.Confidence == nil || *out.Confidence != tt.probability {
				t.Fatalf("confidence = %v, want %v", out.Confidence, tt.probability)
			}
			if out.Error != "model unavailable" {
				t.Fatalf("error detail = %q", out.Error)
			}
			if !strings.Contains(out.AnalysisSummary, "degraded") {
				t.Fatalf("summary %q should mention degradation", out.AnalysisSummary)
			}
		})
	}
}
