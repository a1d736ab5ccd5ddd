package domain

import "image"

// VerdictSource names the authority behind a per-image verdict.
type VerdictSource string

const (
	SourceModel          VerdictSource = "dashscope-model"
	SourceLocalHeuristic VerdictSource = "local-heuristic"
	SourceError          VerdictSource = "error"
)

// RawUpload carries one multipart file exactly as received.
type RawUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageUpload is a validated, decoded upload. Immutable after validation.
type ImageUpload struct {
	Filename string
	MimeType string
	Format   string
	Width    int
	Height   int
	Raw      []byte
	Decoded  image.Image
}

// Classification is the local heuristic's judgement of one image.
type Classification struct {
	IsThermal       bool    `json:"is_thermal"`
	FireProbability float64 `json:"fire_probability"`
}

// ModelVerdict is the external model's structured answer for one image.
// Present only when the model call succeeded.
type ModelVerdict struct {
	FireDetected bool
	Confidence   *float64
	Summary      string
	ModelName    string
	LatencyMS    float64
	Raw          map[string]any
}

// ImageVerdict is the fused per-image result, 1:1 with the accepted uploads.
type ImageVerdict struct {
	Filename             string         `json:"filename"`
	Width                int            `json:"width"`
	Height               int            `json:"height"`
	FireDetected         bool           `json:"fire_detected"`
	Confidence           *float64       `json:"confidence"`
	AnalysisSummary      string         `json:"analysis_summary"`
	LocalFireProbability float64        `json:"local_fire_probability"`
	IsThermal            bool           `json:"is_thermal"`
	ModelName            string         `json:"model_name,omitempty"`
	LatencyMS            *float64       `json:"latency_ms,omitempty"`
	Source               VerdictSource  `json:"source"`
	Raw                  map[string]any `json:"raw_response,omitempty"`
	Error                string         `json:"error,omitempty"`
}

// AnnotatedImage is the transport-encoded annotated copy of one upload.
type AnnotatedImage struct {
	Filename    string `json:"filename"`
	ImageBase64 string `json:"image_base64"`
}

// DetectionReport aggregates everything produced for one request.
// Results and AnnotatedImages are index-aligned with the accepted uploads.
type DetectionReport struct {
	RequestID       string           `json:"request_id"`
	Results         []ImageVerdict   `json:"results"`
	AnnotatedImages []AnnotatedImage `json:"annotated_images"`
	DurationMS      float64          `json:"duration_ms"`
}
