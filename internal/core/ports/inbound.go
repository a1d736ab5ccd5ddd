package ports

import (
	"context"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

// FireDetectionService is the inbound surface consumed by the HTTP adapter.
type FireDetectionService interface {
	Detect(ctx context.Context, requestID string, uploads []domain.RawUpload) (*domain.DetectionReport, error)
}
