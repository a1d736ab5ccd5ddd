package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/antonkazakov/firewatch/internal/core/domain"
	"github.com/antonkazakov/firewatch/internal/core/ports"
	"github.com/antonkazakov/firewatch/internal/observability/metrics"
)

// legacyDetectPath is the route the original deployment exposed; it stays
// routable so existing callers keep working.
const legacyDetectPath = "/ai_enhanced_fire_detect"

var (
	errInvalidMultipart = errors.New("request body must be multipart/form-data with image files")
	errNoImages         = errors.New("no image files provided: use form field 'images'")
)

type RouterConfig struct {
	ServiceName     string
	MaxBodyBytes    int64
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxConcurrent   int
	OverloadTimeout time.Duration
}

type Router struct {
	service ports.FireDetectionService
	metrics *metrics.HTTPServerMetrics
	cfg     RouterConfig
}

func NewRouter(
	service ports.FireDetectionService,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 16 << 20
	}
	return &Router{
		service: service,
		metrics: serverMetrics,
		cfg:     cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/fire/detect", rt.detectFire)
	mux.HandleFunc(legacyDetectPath, rt.detectFire)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.OverloadTimeout, rt.throttled("overloaded"))
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.throttled("rate_limited"))
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) throttled(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() {
		rt.metrics.RecordThrottled(rt.cfg.ServiceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) detectFire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST with multipart/form-data")
		return
	}

	uploads, err := rt.readUploads(w, r)
	if err != nil {
		rt.recordRejected("invalid_request")
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	report, err := rt.service.Detect(r.Context(), requestIDFromContext(r.Context()), uploads)
	if err != nil {
		status, code := mapError(err)
		rt.recordRejected(code)
		writeError(w, status, code, errorMessage(err))
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordDetection(rt.cfg.ServiceName, report)
	}
	writeJSON(w, http.StatusOK, detectionResponse{
		Status:          "success",
		RequestID:       report.RequestID,
		Results:         report.Results,
		AnnotatedImages: report.AnnotatedImages,
		DurationMS:      report.DurationMS,
	})
}

// readUploads extracts image files from the multipart form. The canonical
// field is "images"; "image" is accepted as a single-file fallback.
func (rt *Router) readUploads(w http.ResponseWriter, r *http.Request) ([]domain.RawUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxBodyBytes)
	if err := r.ParseMultipartForm(rt.cfg.MaxBodyBytes); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "http.detect",
			errInvalidMultipart)
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["image"]
	}
	if len(headers) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "http.detect", errNoImages)
	}

	uploads := make([]domain.RawUpload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "http.detect", err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "http.detect", err)
		}
		uploads = append(uploads, domain.RawUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func (rt *Router) recordRejected(code string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(rt.cfg.ServiceName, code)
	}
}

type detectionResponse struct {
	Status          string                  `json:"status"`
	RequestID       string                  `json:"request_id"`
	Results         []domain.ImageVerdict   `json:"results"`
	AnnotatedImages []domain.AnnotatedImage `json:"annotated_images"`
	DurationMS      float64                 `json:"duration_ms"`
}

type errorEnvelope struct {
	Status string      `json:"status"`
	Error  errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{
		Status: "error",
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// errorMessage keeps internal failure detail out of 5xx responses while
// passing validation messages through verbatim.
func errorMessage(err error) string {
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	switch {
	case domain.IsKind(err, domain.ErrModelTimeout):
		return "vision model did not respond in time"
	case domain.IsKind(err, domain.ErrExternalService):
		return "vision model request failed"
	default:
		return "internal error"
	}
}
