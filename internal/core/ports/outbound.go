package ports

import (
	"context"
	"io"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

// ImagePreparer validates one raw upload and decodes it.
type ImagePreparer interface {
	Prepare(upload domain.RawUpload) (*domain.ImageUpload, error)
}

// ThermalClassifier runs the local thermal/fire-probability heuristics.
// Implementations must be side-effect-free and CPU-bounded.
type ThermalClassifier interface {
	Classify(img *domain.ImageUpload) domain.Classification
}

// VisionAnalyzer submits one image to the external vision model.
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, img *domain.ImageUpload, localProbability float64, requestID string) (*domain.ModelVerdict, error)
}

// Annotator renders the verdict onto a copy of the image and encodes it
// for transport. The original image is never mutated.
type Annotator interface {
	Annotate(img *domain.ImageUpload, verdict domain.ImageVerdict) (domain.AnnotatedImage, error)
}

// EventSink consumes structured pipeline events. Emission is best-effort:
// sink failures must never influence the request outcome.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event)
}

// ArtifactStore archives annotated copies for operator inspection.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
}
