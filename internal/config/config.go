// Package config assembles the typed application configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/infrastructure/logger"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "google/gemini-2.5-pro"
	defaultGeminiModel     = "gemini-2.5-pro"
)

type Config struct {
	Model   ModelConfig
	Server  ServerConfig
	Image   ImageConfig
	Browser BrowserConfig
	Runner  RunnerConfig
	Logger  logger.Config
}

// ModelConfig selects and authenticates the hosted vision model.
type ModelConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
	JSONMode    bool
	LogRequests bool
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	TurnRateLimit  float64
	TurnRateBurst  int
}

type ImageConfig struct {
	MaxWidth    int
	JPEGQuality int
}

type BrowserConfig struct {
	Headless bool
	Timeout  time.Duration
}

type RunnerConfig struct {
	MaxSteps          int
	MaxRetriesPerGoal int
	WaitDuration      time.Duration
	ExportDir         string
}

// Load reads configuration through env. Missing credentials or an unknown
// provider return an *entity.ConfigurationError.
func Load(env output.ConfigPort) (*Config, error) {
	model, err := loadModel(env)
	if err != nil {
		return nil, err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = env.GetWithDefault("LOG_LEVEL", logCfg.Level)
	logCfg.Format = env.GetWithDefault("LOG_FORMAT", logCfg.Format)
	logCfg.File = env.Get("LOG_FILE")

	cfg := &Config{
		Model: model,
		Server: ServerConfig{
			Addr:           ":" + env.GetWithDefault("PORT", "8080"),
			AllowedOrigins: splitList(env.GetWithDefault("CORS_ALLOWED_ORIGINS", "*")),
			MaxUploadBytes: int64(env.GetInt("MAX_UPLOAD_BYTES", 10<<20)),
			RequestTimeout: env.GetDuration("REQUEST_TIMEOUT", 3*time.Minute),
			TurnRateLimit:  env.GetFloat("TURN_RATE_LIMIT", 0),
			TurnRateBurst:  env.GetInt("TURN_RATE_BURST", 4),
		},
		Image: ImageConfig{
			MaxWidth:    env.GetInt("SCREENSHOT_MAX_WIDTH", 1280),
			JPEGQuality: env.GetInt("SCREENSHOT_JPEG_QUALITY", 80),
		},
		Browser: BrowserConfig{
			Headless: env.GetBool("BROWSER_HEADLESS", false),
			Timeout:  env.GetDuration("BROWSER_TIMEOUT", 10*time.Second),
		},
		Runner: RunnerConfig{
			MaxSteps:          env.GetInt("MAX_STEPS", 30),
			MaxRetriesPerGoal: env.GetInt("MAX_RETRIES_PER_GOAL", 3),
			WaitDuration:      env.GetDuration("WAIT_DURATION", 2*time.Second),
			ExportDir:         env.GetWithDefault("EXPORT_DIR", "workflows"),
		},
		Logger: logCfg,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadModel(env output.ConfigPort) (ModelConfig, error) {
	provider := strings.ToLower(env.GetWithDefault("LLM_PROVIDER", ProviderGemini))

	m := ModelConfig{
		Provider:    provider,
		Timeout:     env.GetDuration("MODEL_TIMEOUT", 2*time.Minute),
		Temperature: float32(env.GetFloat("MODEL_TEMPERATURE", 0)),
		JSONMode:    env.GetBool("MODEL_JSON_MODE", true),
		LogRequests: env.GetBool("MODEL_LOG_REQUESTS", false),
	}

	var err error
	switch provider {
	case ProviderOpenRouter:
		m.APIKey, err = env.Require("OPENROUTER_API_KEY")
		m.Model = env.GetWithDefault("OPENROUTER_MODEL_NAME", defaultOpenRouterModel)
		m.BaseURL = env.GetWithDefault("OPENROUTER_BASE_URL", defaultOpenRouterURL)
	case ProviderGemini:
		m.APIKey, err = env.Require("GEMINI_API_KEY")
		m.Model = env.GetWithDefault("GEMINI_MODEL_NAME", defaultGeminiModel)
	default:
		err = &entity.ConfigurationError{
			Key:    "LLM_PROVIDER",
			Reason: fmt.Sprintf("unknown provider %q, use %s or %s", provider, ProviderOpenRouter, ProviderGemini),
		}
	}
	if err != nil {
		return ModelConfig{}, err
	}
	return m, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == ":" {
		return &entity.ConfigurationError{Key: "PORT", Reason: "cannot be empty"}
	}
	if c.Server.MaxUploadBytes <= 0 {
		return &entity.ConfigurationError{Key: "MAX_UPLOAD_BYTES", Reason: "must be > 0"}
	}
	if c.Server.TurnRateLimit < 0 {
		return &entity.ConfigurationError{Key: "TURN_RATE_LIMIT", Reason: "must be >= 0"}
	}
	if c.Server.TurnRateLimit > 0 && c.Server.TurnRateBurst <= 0 {
		return &entity.ConfigurationError{Key: "TURN_RATE_BURST", Reason: "must be > 0 when TURN_RATE_LIMIT is set"}
	}
	if c.Image.MaxWidth < 0 {
		return &entity.ConfigurationError{Key: "SCREENSHOT_MAX_WIDTH", Reason: "must be >= 0"}
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return &entity.ConfigurationError{Key: "SCREENSHOT_JPEG_QUALITY", Reason: "must be within [1, 100]"}
	}
	if c.Runner.MaxSteps <= 0 {
		return &entity.ConfigurationError{Key: "MAX_STEPS", Reason: "must be > 0"}
	}
	if c.Runner.MaxRetriesPerGoal < 0 {
		return &entity.ConfigurationError{Key: "MAX_RETRIES_PER_GOAL", Reason: "must be >= 0"}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
