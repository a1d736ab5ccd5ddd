package events

import (
	"context"
	"log/slog"

	"github.com/antonkazakov/firewatch/internal/core/domain"
	"github.com/antonkazakov/firewatch/internal/core/ports"
)

// SlogSink writes pipeline events to the structured log. It is the default
// sink and stays active even when an external broker is configured.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(_ context.Context, event domain.Event) {
	attrs := []any{
		slog.String("event_type", event.Type),
		slog.String("request_id", event.RequestID),
	}
	if event.Filename != "" {
		attrs = append(attrs, slog.String("filename", event.Filename))
	}
	for key, value := range event.Fields {
		attrs = append(attrs, slog.Any(key, value))
	}
	s.logger.Info("pipeline_event", attrs...)
}

// Fanout delivers every event to each wired sink in order.
type Fanout struct {
	sinks []ports.EventSink
}

func NewFanout(sinks ...ports.EventSink) *Fanout {
	out := make([]ports.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Emit(ctx context.Context, event domain.Event) {
	for _, sink := range f.sinks {
		sink.Emit(ctx, event)
	}
}
