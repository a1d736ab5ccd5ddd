package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

func TestSlogSinkWritesEventFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sink := NewSlogSink(logger)
	sink.Emit(context.Background(), domain.Event{
		Type:      domain.EventImageClassified,
		RequestID: "req-1",
		Filename:  "scene.jpg",
		Fields:    map[string]any{"is_thermal": true},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["event_type"] != domain.EventImageClassified {
		t.Fatalf("event_type = %v", entry["event_type"])
	}
	if entry["request_id"] != "req-1" {
		t.Fatalf("request_id = %v", entry["request_id"])
	}
	if entry["filename"] != "scene.jpg" {
		t.Fatalf("filename = %v", entry["filename"])
	}
	if entry["is_thermal"] != true {
		t.Fatalf("is_thermal = %v", entry["is_thermal"])
	}
}

type countingSink struct {
	count int
}

func (s *countingSink) Emit(context.Context, domain.Event) { s.count++ }

func TestFanoutSkipsNilSinks(t *testing.T) {
	first := &countingSink{}
	second := &countingSink{}
	fanout := NewFanout(first, nil, second)

	fanout.Emit(context.Background(), domain.Event{Type: domain.EventRequestCompleted})
	if first.count != 1 || second.count != 1 {
		t.Fatalf("counts = %d, %d", first.count, second.count)
	}
}
