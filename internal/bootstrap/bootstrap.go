package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antonkazakov/firewatch/internal/config"
	"github.com/antonkazakov/firewatch/internal/core/ports"
	"github.com/antonkazakov/firewatch/internal/core/usecase"
	"github.com/antonkazakov/firewatch/internal/infrastructure/imaging"
	"github.com/antonkazakov/firewatch/internal/infrastructure/llm/dashscope"
	"github.com/antonkazakov/firewatch/internal/infrastructure/queue/nats"
	"github.com/antonkazakov/firewatch/internal/infrastructure/resilience"
	"github.com/antonkazakov/firewatch/internal/infrastructure/storage/localfs"
	"github.com/antonkazakov/firewatch/internal/observability/events"
)

type App struct {
	Config config.Config

	DetectionService ports.FireDetectionService

	closeFn func()
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		BackoffFactor:  time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		Jitter:         true,
		BreakerEnabled: true,
	})

	analyzer := dashscope.New(dashscope.Config{
		Endpoint:        cfg.DashScopeEndpoint,
		APIKey:          cfg.DashScopeAPIKey,
		Model:           cfg.DashScopeModel,
		Prompt:          cfg.DetectionPrompt,
		ForceMock:       cfg.ForceMockDashScope,
		ConnectTimeout:  time.Duration(cfg.DashScopeConnectTimeoutSeconds) * time.Second,
		ReadTimeout:     time.Duration(cfg.DashScopeReadTimeoutSeconds) * time.Second,
		PoolConnections: cfg.DashScopePoolConnections,
		PoolMaxSize:     cfg.DashScopePoolMaxSize,
	}, executor)

	preparer := imaging.NewPreparer(splitTypes(cfg.AllowedImageTypes), cfg.MaxUploadBytes)
	classifier := imaging.NewClassifier()
	annotator := imaging.NewAnnotator()

	sinks := []ports.EventSink{events.NewSlogSink(logger)}
	var closers []func()
	if cfg.NATSEnabled {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init nats publisher: %w", err)
		}
		sinks = append(sinks, publisher)
		closers = append(closers, publisher.Close)
	}

	var artifacts ports.ArtifactStore
	if cfg.ArchiveEnabled {
		archive, err := localfs.New(cfg.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("init annotated archive: %w", err)
		}
		artifacts = archive
	}

	detectCfg := usecase.DefaultDetectConfig()
	detectCfg.MaxImages = cfg.MaxImagesPerRequest
	detectCfg.MaxTotalBytes = cfg.MaxUploadBytes
	detectCfg.ArchiveImages = cfg.ArchiveEnabled

	detectUC := usecase.NewDetectFireUseCase(
		preparer,
		classifier,
		analyzer,
		annotator,
		events.NewFanout(sinks...),
		artifacts,
		detectCfg,
		logger,
	)

	return &App{
		Config:           cfg,
		DetectionService: detectUC,
		closeFn: func() {
			for _, close := range closers {
				close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func splitTypes(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
