package dashscope

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/antonkazakov/firewatch/internal/core/domain"
	"github.com/antonkazakov/firewatch/internal/infrastructure/resilience"
)

const defaultPrompt = "You are an expert vision model assisting with early forest fire detection. " +
	"Analyse the provided image, focus on identifying visible smoke columns, embers, flame fronts, " +
	"or reflections. Estimate the likelihood of an active fire and describe any visible risks. " +
	"Return concise natural language observations including risk level and contributing factors."

type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Prompt   string

	// ForceMock synthesizes verdicts locally instead of calling out.
	// Also implied by an empty API key.
	ForceMock bool

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// PoolConnections/PoolMaxSize bound the shared outbound connection
	// pool; PoolMaxSize caps concurrent connections process-wide.
	PoolConnections int
	PoolMaxSize     int
}

// Client talks to a DashScope-compatible chat-completions endpoint.
// One Client (and its pooled transport) is shared across all requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 120 * time.Second
	}
	if cfg.PoolConnections <= 0 {
		cfg.PoolConnections = 10
	}
	if cfg.PoolMaxSize <= 0 {
		cfg.PoolMaxSize = 20
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.PoolConnections,
		MaxIdleConnsPerHost: cfg.PoolConnections,
		MaxConnsPerHost:     cfg.PoolMaxSize,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.ReadTimeout,
		},
		executor: executor,
	}
}

func (c *Client) mockEnabled() bool {
	return c.cfg.ForceMock || c.cfg.APIKey == ""
}

// AnalyzeImage submits one image for wildfire assessment. Transient
// failures are retried by the resilience executor; 4xx responses are
// terminal for this image.
func (c *Client) AnalyzeImage(
	ctx context.Context,
	img *domain.ImageUpload,
	localProbability float64,
	requestID string,
) (*domain.ModelVerdict, error) {
	if c.mockEnabled() {
		return c.mockVerdict(localProbability), nil
	}
	if c.cfg.Endpoint == "" {
		return nil, domain.WrapError(domain.ErrExternalService, "dashscope analyze",
			errors.New("endpoint is not configured"))
	}

	payload := map[string]any{
		"model":    c.cfg.Model,
		"messages": c.buildMessages(img, localProbability),
	}

	start := time.Now()
	var raw map[string]any
	err := c.execute(ctx, "dashscope.analyze", func(callCtx context.Context) error {
		decoded, callErr := c.postJSON(callCtx, payload, requestID)
		if callErr != nil {
			return callErr
		}
		raw = decoded
		return nil
	})
	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return nil, wrapAnalyzeError(err)
	}

	summary := extractSummary(raw)
	if summary == "" {
		return nil, domain.WrapError(domain.ErrExternalService, "dashscope analyze",
			errors.New("response carried no extractable summary"))
	}
	confidence := extractConfidence(summary)
	fireDetected := inferFireDetection(summary, confidence, localProbability)

	return &domain.ModelVerdict{
		FireDetected: fireDetected,
		Confidence:   confidence,
		Summary:      summary,
		ModelName:    c.cfg.Model,
		LatencyMS:    latency,
		Raw:          raw,
	}, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyDashScopeError)
}

func (c *Client) buildMessages(img *domain.ImageUpload, localProbability float64) []map[string]any {
	format := img.Format
	if format == "" {
		format = "jpeg"
	}
	dataURL := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(img.Raw))

	userPrompt := strings.Join([]string{
		fmt.Sprintf("Filename: %s", img.Filename),
		fmt.Sprintf("Local heuristic fire probability: %.1f%%", localProbability*100),
	}, "\n")

	return []map[string]any{
		{
			"role":    "system",
			"content": []map[string]any{{"type": "text", "text": c.cfg.Prompt}},
		},
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": userPrompt},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			},
		},
	}
}

func (c *Client) mockVerdict(localProbability float64) *domain.ModelVerdict {
	fireDetected := localProbability >= 0.5
	var confidence *float64
	if fireDetected {
		p := localProbability
		confidence = &p
	}
	return &domain.ModelVerdict{
		FireDetected: fireDetected,
		Confidence:   confidence,
		Summary: fmt.Sprintf(
			"[Mock] Local heuristic indicates a %.1f%% probability of visible fire or smoke. No external analysis was performed.",
			localProbability*100,
		),
		ModelName: c.cfg.Model,
		Raw: map[string]any{
			"mock":              true,
			"local_probability": localProbability,
			"note":              "DashScope mock mode is enabled (no API key configured).",
		},
	}
}

func wrapAnalyzeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return domain.WrapError(domain.ErrModelTimeout, "dashscope analyze", err)
	}
	return domain.WrapError(domain.ErrExternalService, "dashscope analyze", err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
