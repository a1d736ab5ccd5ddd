package domain

// Pipeline stages reported through the event sink.
const (
	EventRequestReceived    = "request_received"
	EventRequestValidated   = "request_validated"
	EventRequestRejected    = "request_rejected"
	EventImageClassified    = "image_classified"
	EventModelCallCompleted = "model_call_completed"
	EventRequestCompleted   = "request_completed"
)

// Event is one structured observability record emitted by the pipeline.
// The core depends only on the emit capability, never on a concrete sink.
type Event struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Filename  string         `json:"filename,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}
