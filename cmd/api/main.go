package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/antonkazakov/firewatch/internal/adapters/http"
	"github.com/antonkazakov/firewatch/internal/bootstrap"
	"github.com/antonkazakov/firewatch/internal/config"
	"github.com/antonkazakov/firewatch/internal/observability/logging"
	"github.com/antonkazakov/firewatch/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.NewJSONLogger("firewatch-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("firewatch-api")
	router := httpadapter.NewRouter(app.DetectionService, serverMetrics, httpadapter.RouterConfig{
		ServiceName:     "firewatch-api",
		MaxBodyBytes:    cfg.MaxUploadBytes,
		RateLimitRPS:    cfg.APIRateLimitRPS,
		RateLimitBurst:  cfg.APIRateLimitBurst,
		MaxConcurrent:   cfg.APIMaxConcurrent,
		OverloadTimeout: time.Duration(cfg.APIOverloadTimeoutMS) * time.Millisecond,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.DashScopeReadTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown error", slog.String("error", err.Error()))
	}
}
