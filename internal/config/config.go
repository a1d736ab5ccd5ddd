package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	DashScopeEndpoint              string `yaml:"dashscope_endpoint"`
	DashScopeAPIKey                string `yaml:"dashscope_api_key"`
	DashScopeModel                 string `yaml:"dashscope_model"`
	DetectionPrompt                string `yaml:"detection_prompt"`
	ForceMockDashScope             bool   `yaml:"force_mock_dashscope"`
	DashScopeConnectTimeoutSeconds int    `yaml:"dashscope_connect_timeout_seconds"`
	DashScopeReadTimeoutSeconds    int    `yaml:"dashscope_read_timeout_seconds"`
	DashScopePoolConnections       int    `yaml:"dashscope_pool_connections"`
	DashScopePoolMaxSize           int    `yaml:"dashscope_pool_max_size"`

	RetryMaxAttempts  int `yaml:"retry_max_attempts"`
	RetryBackoffMS    int `yaml:"retry_backoff_ms"`
	RetryMaxBackoffMS int `yaml:"retry_max_backoff_ms"`

	MaxImagesPerRequest int    `yaml:"max_images_per_request"`
	MaxUploadBytes      int64  `yaml:"max_upload_bytes"`
	AllowedImageTypes   string `yaml:"allowed_image_types"`

	ArchiveEnabled bool   `yaml:"archive_enabled"`
	ArchivePath    string `yaml:"archive_path"`

	NATSEnabled       bool   `yaml:"nats_enabled"`
	NATSURL           string `yaml:"nats_url"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	APIRateLimitRPS      float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst    int     `yaml:"api_rate_limit_burst"`
	APIMaxConcurrent     int     `yaml:"api_max_concurrent"`
	APIOverloadTimeoutMS int     `yaml:"api_overload_timeout_ms"`
}

func defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		DashScopeEndpoint:              "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions",
		DashScopeModel:                 "qwen-vl-max",
		DashScopeConnectTimeoutSeconds: 10,
		DashScopeReadTimeoutSeconds:    60,
		DashScopePoolConnections:       10,
		DashScopePoolMaxSize:           20,

		RetryMaxAttempts:  3,
		RetryBackoffMS:    500,
		RetryMaxBackoffMS: 8000,

		MaxImagesPerRequest: 2,
		MaxUploadBytes:      16 << 20,
		AllowedImageTypes:   "image/jpeg,image/png,image/webp",

		ArchivePath: "./data/annotated",

		NATSURL:           "nats://localhost:4222",
		NATSSubjectPrefix: "firewatch.events",

		APIRateLimitRPS:      20,
		APIRateLimitBurst:    40,
		APIMaxConcurrent:     64,
		APIOverloadTimeoutMS: 100,
	}
}

// Load builds the runtime configuration in three layers: built-in defaults,
// an optional YAML file named by FIREWATCH_CONFIG, then environment
// variables. Later layers win.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("FIREWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIPort = envStr("API_PORT", c.APIPort)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)

	c.DashScopeEndpoint = envStr("DASHSCOPE_ENDPOINT", c.DashScopeEndpoint)
	c.DashScopeAPIKey = envStr("DASHSCOPE_API_KEY", c.DashScopeAPIKey)
	c.DashScopeModel = envStr("DASHSCOPE_MODEL", c.DashScopeModel)
	c.DetectionPrompt = envStr("DETECTION_PROMPT", c.DetectionPrompt)
	c.ForceMockDashScope = envBool("FORCE_MOCK_DASHSCOPE", c.ForceMockDashScope)
	c.DashScopeConnectTimeoutSeconds = envInt("DASHSCOPE_CONNECT_TIMEOUT_SECONDS", c.DashScopeConnectTimeoutSeconds)
	c.DashScopeReadTimeoutSeconds = envInt("DASHSCOPE_READ_TIMEOUT_SECONDS", c.DashScopeReadTimeoutSeconds)
	c.DashScopePoolConnections = envInt("DASHSCOPE_POOL_CONNECTIONS", c.DashScopePoolConnections)
	c.DashScopePoolMaxSize = envInt("DASHSCOPE_POOL_MAX_SIZE", c.DashScopePoolMaxSize)

	c.RetryMaxAttempts = envInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryBackoffMS = envInt("RETRY_BACKOFF_MS", c.RetryBackoffMS)
	c.RetryMaxBackoffMS = envInt("RETRY_MAX_BACKOFF_MS", c.RetryMaxBackoffMS)

	c.MaxImagesPerRequest = envInt("MAX_IMAGES_PER_REQUEST", c.MaxImagesPerRequest)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.AllowedImageTypes = envStr("ALLOWED_IMAGE_TYPES", c.AllowedImageTypes)

	c.ArchiveEnabled = envBool("ARCHIVE_ENABLED", c.ArchiveEnabled)
	c.ArchivePath = envStr("ARCHIVE_PATH", c.ArchivePath)

	c.NATSEnabled = envBool("NATS_ENABLED", c.NATSEnabled)
	c.NATSURL = envStr("NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = envStr("NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)

	c.APIRateLimitRPS = envFloat("API_RATE_LIMIT_RPS", c.APIRateLimitRPS)
	c.APIRateLimitBurst = envInt("API_RATE_LIMIT_BURST", c.APIRateLimitBurst)
	c.APIMaxConcurrent = envInt("API_MAX_CONCURRENT", c.APIMaxConcurrent)
	c.APIOverloadTimeoutMS = envInt("API_OVERLOAD_TIMEOUT_MS", c.APIOverloadTimeoutMS)
}

func envStr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
