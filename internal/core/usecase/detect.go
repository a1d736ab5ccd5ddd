package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/antonkazakov/firewatch/internal/core/domain"
	"github.com/antonkazakov/firewatch/internal/core/ports"
)

// DetectConfig bounds a single detection request.
type DetectConfig struct {
	MinImages     int
	MaxImages     int
	MaxTotalBytes int64
	ArchiveImages bool
}

// DefaultDetectConfig matches the public API contract: one or two images
// per request, sixteen megabytes combined.
func DefaultDetectConfig() DetectConfig {
	return DetectConfig{
		MinImages:     1,
		MaxImages:     2,
		MaxTotalBytes: 16 << 20,
	}
}

// DetectFireUseCase orchestrates the full pipeline for one request:
// validate and decode the uploads, run the local thermal and fire
// heuristics, fan out to the vision model for non-thermal images, fuse the
// results and render annotated copies.
type DetectFireUseCase struct {
	preparer   ports.ImagePreparer
	classifier ports.ThermalClassifier
	analyzer   ports.VisionAnalyzer
	annotator  ports.Annotator
	sink       ports.EventSink
	artifacts  ports.ArtifactStore
	cfg        DetectConfig
	logger     *slog.Logger
}

func NewDetectFireUseCase(
	preparer ports.ImagePreparer,
	classifier ports.ThermalClassifier,
	analyzer ports.VisionAnalyzer,
	annotator ports.Annotator,
	sink ports.EventSink,
	artifacts ports.ArtifactStore,
	cfg DetectConfig,
	logger *slog.Logger,
) *DetectFireUseCase {
	if cfg.MinImages <= 0 {
		cfg.MinImages = 1
	}
	if cfg.MaxImages < cfg.MinImages {
		cfg.MaxImages = cfg.MinImages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectFireUseCase{
		preparer:   preparer,
		classifier: classifier,
		analyzer:   analyzer,
		annotator:  annotator,
		sink:       sink,
		artifacts:  artifacts,
		cfg:        cfg,
		logger:     logger,
	}
}

func (uc *DetectFireUseCase) Detect(
	ctx context.Context,
	requestID string,
	uploads []domain.RawUpload,
) (*domain.DetectionReport, error) {
	const op = "usecase.detect"
	start := time.Now()

	if requestID == "" {
		requestID = uuid.NewString()
	}
	uc.emit(ctx, domain.Event{
		Type:      domain.EventRequestReceived,
		RequestID: requestID,
		Fields:    map[string]any{"image_count": len(uploads)},
	})

	if err := uc.validateBatch(uploads); err != nil {
		uc.emit(ctx, domain.Event{
			Type:      domain.EventRequestRejected,
			RequestID: requestID,
			Fields:    map[string]any{"reason": err.Error()},
		})
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	images := make([]*domain.ImageUpload, len(uploads))
	for i, upload := range uploads {
		img, err := uc.preparer.Prepare(upload)
		if err != nil {
			uc.emit(ctx, domain.Event{
				Type:      domain.EventRequestRejected,
				RequestID: requestID,
				Filename:  upload.Filename,
				Fields:    map[string]any{"reason": err.Error()},
			})
			return nil, fmt.Errorf("%s: image %q: %w", op, upload.Filename, err)
		}
		images[i] = img
	}
	uc.emit(ctx, domain.Event{
		Type:      domain.EventRequestValidated,
		RequestID: requestID,
		Fields:    map[string]any{"image_count": len(images)},
	})

	classifications := make([]domain.Classification, len(images))
	for i, img := range images {
		classifications[i] = uc.classifier.Classify(img)
		uc.emit(ctx, domain.Event{
			Type:      domain.EventImageClassified,
			RequestID: requestID,
			Filename:  img.Filename,
			Fields: map[string]any{
				"is_thermal":       classifications[i].IsThermal,
				"fire_probability": classifications[i].FireProbability,
			},
		})
	}

	verdicts := make([]*domain.ModelVerdict, len(images))
	callErrs := make([]error, len(images))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.cfg.MaxImages)
	for i, img := range images {
		i, img := i, img
		if classifications[i].IsThermal {
			continue
		}
		group.Go(func() error {
			verdict, err := uc.analyzer.AnalyzeImage(
				groupCtx, img, classifications[i].FireProbability, requestID,
			)
			verdicts[i] = verdict
			callErrs[i] = err
			uc.emitModelCall(ctx, requestID, img.Filename, verdict, err)
			return nil
		})
	}
	// Goroutines never return an error; individual model failures degrade
	// the affected image instead of aborting the batch.
	_ = group.Wait()

	results := make([]domain.ImageVerdict, len(images))
	annotated := make([]domain.AnnotatedImage, len(images))
	for i, img := range images {
		results[i] = fuseVerdict(img, classifications[i], verdicts[i], callErrs[i])
		art, err := uc.annotator.Annotate(img, results[i])
		if err != nil {
			return nil, domain.WrapError(domain.ErrAnnotation, op, err)
		}
		annotated[i] = art
	}

	if uc.cfg.ArchiveImages && uc.artifacts != nil {
		uc.archive(ctx, requestID, annotated)
	}

	report := &domain.DetectionReport{
		RequestID:       requestID,
		Results:         results,
		AnnotatedImages: annotated,
		DurationMS:      float64(time.Since(start).Microseconds()) / 1000.0,
	}
	uc.emit(ctx, domain.Event{
		Type:      domain.EventRequestCompleted,
		RequestID: requestID,
		Fields: map[string]any{
			"image_count": len(results),
			"duration_ms": report.DurationMS,
		},
	})
	return report, nil
}

func (uc *DetectFireUseCase) validateBatch(uploads []domain.RawUpload) error {
	if len(uploads) < uc.cfg.MinImages {
		return fmt.Errorf("no image files provided")
	}
	if len(uploads) > uc.cfg.MaxImages {
		return fmt.Errorf("too many images: got %d, maximum is %d", len(uploads), uc.cfg.MaxImages)
	}
	if uc.cfg.MaxTotalBytes > 0 {
		var total int64
		for _, upload := range uploads {
			total += int64(len(upload.Data))
		}
		if total > uc.cfg.MaxTotalBytes {
			return fmt.Errorf("combined upload size %d exceeds limit %d", total, uc.cfg.MaxTotalBytes)
		}
	}
	return nil
}

func (uc *DetectFireUseCase) emitModelCall(
	ctx context.Context,
	requestID, filename string,
	verdict *domain.ModelVerdict,
	err error,
) {
	fields := map[string]any{"success": err == nil}
	if verdict != nil {
		fields["model"] = verdict.ModelName
		fields["latency_ms"] = verdict.LatencyMS
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	uc.emit(ctx, domain.Event{
		Type:      domain.EventModelCallCompleted,
		RequestID: requestID,
		Filename:  filename,
		Fields:    fields,
	})
}

func (uc *DetectFireUseCase) archive(ctx context.Context, requestID string, annotated []domain.AnnotatedImage) {
	for _, art := range annotated {
		data, err := base64.StdEncoding.DecodeString(art.ImageBase64)
		if err != nil {
			uc.logger.Warn("archive skip: undecodable annotated image",
				slog.String("request_id", requestID),
				slog.String("filename", art.Filename))
			continue
		}
		key := path.Join(requestID, art.Filename)
		if err := uc.artifacts.Save(ctx, key, bytes.NewReader(data)); err != nil {
			uc.logger.Warn("archive save failed",
				slog.String("request_id", requestID),
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

func (uc *DetectFireUseCase) emit(ctx context.Context, event domain.Event) {
	if uc.sink == nil {
		return
	}
	uc.sink.Emit(ctx, event)
}
