package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	detectionsTotal    *prometheus.CounterVec
	imagesTotal        *prometheus.CounterVec
	thermalSkipsTotal  *prometheus.CounterVec
	degradedTotal      *prometheus.CounterVec
	modelCallDuration  *prometheus.HistogramVec
	detectionDuration  *prometheus.HistogramVec
	rejectedTotal      *prometheus.CounterVec
	throttledTotal     *prometheus.CounterVec
	localProbabilities *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "firewatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "firewatch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	detectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "requests_total",
			Help:      "Total completed detection requests.",
		},
		[]string{"service"},
	)
	imagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "images_total",
			Help:      "Analyzed images by verdict source and outcome.",
		},
		[]string{"service", "source", "fire_detected"},
	)
	thermalSkipsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "thermal_skips_total",
			Help:      "Images classified as thermal and excluded from model analysis.",
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "degraded_total",
			Help:      "Images that fell back to the local heuristic after a model failure.",
		},
		[]string{"service"},
	)
	modelCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "firewatch",
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Vision model round-trip duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"service", "model"},
	)
	detectionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "End-to-end detection request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "rejected_total",
			Help:      "Requests rejected before analysis by error code.",
		},
		[]string{"service", "code"},
	)
	throttledTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firewatch",
			Subsystem: "http",
			Name:      "throttled_total",
			Help:      "Requests refused by rate limiting or backpressure.",
		},
		[]string{"service", "reason"},
	)
	localProbabilities := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "firewatch",
			Subsystem: "detection",
			Name:      "local_fire_probability",
			Help:      "Distribution of local heuristic fire probabilities.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		detectionsTotal,
		imagesTotal,
		thermalSkipsTotal,
		degradedTotal,
		modelCallDuration,
		detectionDuration,
		rejectedTotal,
		throttledTotal,
		localProbabilities,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		detectionsTotal:    detectionsTotal,
		imagesTotal:        imagesTotal,
		thermalSkipsTotal:  thermalSkipsTotal,
		degradedTotal:      degradedTotal,
		modelCallDuration:  modelCallDuration,
		detectionDuration:  detectionDuration,
		rejectedTotal:      rejectedTotal,
		throttledTotal:     throttledTotal,
		localProbabilities: localProbabilities,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds the legacy detection alias into the canonical route so
// both surface under one label value.
func normalizePath(path string) string {
	if path == "/ai_enhanced_fire_detect" {
		return "/v1/fire/detect"
	}
	return path
}

func (m *HTTPServerMetrics) RecordDetection(service string, report *domain.DetectionReport) {
	m.detectionsTotal.WithLabelValues(service).Inc()
	m.detectionDuration.WithLabelValues(service).Observe(report.DurationMS / 1000.0)

	for _, result := range report.Results {
		m.imagesTotal.WithLabelValues(
			service,
			string(result.Source),
			strconv.FormatBool(result.FireDetected),
		).Inc()
		m.localProbabilities.WithLabelValues(service).Observe(result.LocalFireProbability)

		switch result.Source {
		case domain.SourceLocalHeuristic:
			m.thermalSkipsTotal.WithLabelValues(service).Inc()
		case domain.SourceError:
			m.degradedTotal.WithLabelValues(service).Inc()
		case domain.SourceModel:
			if result.LatencyMS != nil {
				m.modelCallDuration.WithLabelValues(service, result.ModelName).
					Observe(*result.LatencyMS / 1000.0)
			}
		}
	}
}

func (m *HTTPServerMetrics) RecordRejected(service, code string) {
	m.rejectedTotal.WithLabelValues(service, code).Inc()
}

func (m *HTTPServerMetrics) RecordThrottled(service, reason string) {
	m.throttledTotal.WithLabelValues(service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
