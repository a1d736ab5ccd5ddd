package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/antonkazakov/firewatch/internal/core/domain"
	"github.com/antonkazakov/firewatch/internal/infrastructure/resilience"
)

// EventPublisher fans detection lifecycle events out to NATS so downstream
// consumers (alerting, audit) can follow the pipeline without sitting on the
// request path. Emit never fails the request: publish errors are logged and
// dropped.
type EventPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	executor      *resilience.Executor
	logger        *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subjectPrefix string) (*EventPublisher, error) {
	return NewWithOptions(url, subjectPrefix, Options{})
}

func NewWithOptions(url, subjectPrefix string, options Options) (*EventPublisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("firewatch"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventPublisher{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		executor:      options.ResilienceExecutor,
		logger:        logger,
	}, nil
}

func (p *EventPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type eventMessage struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Filename  string         `json:"filename,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (p *EventPublisher) Emit(ctx context.Context, event domain.Event) {
	payload, err := json.Marshal(eventMessage{
		Type:      event.Type,
		RequestID: event.RequestID,
		Filename:  event.Filename,
		Fields:    event.Fields,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("event marshal failed",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
		return
	}

	subject := p.subjectPrefix + "." + event.Type
	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		p.logger.Warn("event publish failed",
			slog.String("subject", subject),
			slog.String("request_id", event.RequestID),
			slog.String("error", err.Error()))
	}
}
