package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Image providers selectable with IMAGE_PROVIDER.
const (
	ProviderGemini  = "gemini"
	ProviderVenice  = "venice"
	ProviderOpenAI  = "openai"
	ProviderGateway = "gateway" // another scene-engine API's /v1/scene endpoint
	ProviderMock    = "mock"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key for image provider")
	ErrUnknownProvider = errors.New("unknown image provider")
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level `env:"-"`

	// Image generation
	ImageProvider    string        `env:"IMAGE_PROVIDER" envDefault:"gemini"`
	ImageModel       string        `env:"IMAGE_MODEL"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	VeniceAPIKey     string        `env:"VENICE_API_KEY"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	SceneGatewayURL  string        `env:"SCENE_GATEWAY_URL" envDefault:"http://localhost:8080"`
	ImageHTTPTimeout time.Duration `env:"IMAGE_HTTP_TIMEOUT" envDefault:"120s"`
	SafePrompts      bool          `env:"SAFE_PROMPTS" envDefault:"true"`

	// Scene engine
	SceneCacheSize      int `env:"SCENE_CACHE_SIZE" envDefault:"0"` // 0 = unbounded
	PrefetchConcurrency int `env:"PREFETCH_CONCURRENCY" envDefault:"2"`

	// Collaborators
	GameServerURL string `env:"GAME_SERVER_URL" envDefault:"http://localhost:8787"`
	RedisURL      string `env:"REDIS_URL"` // optional; enables scene event streaming
	StateDir      string `env:"STATE_DIR" envDefault:".scene-engine"`

	// Tracing is opt-in
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.ImageProvider = strings.ToLower(strings.TrimSpace(cfg.ImageProvider))
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel(cfg.ImageProvider)
	}
	if cfg.PrefetchConcurrency < 1 {
		cfg.PrefetchConcurrency = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected image provider is usable.
func (c *Config) Validate() error {
	switch c.ImageProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
		}
	case ProviderVenice:
		if c.VeniceAPIKey == "" {
			return fmt.Errorf("%w: set VENICE_API_KEY", ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
		}
	case ProviderGateway:
		if c.SceneGatewayURL == "" {
			return errors.New("SCENE_GATEWAY_URL is required for the gateway provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, venice, openai, gateway, mock)", ErrUnknownProvider, c.ImageProvider)
	}

	if c.SceneCacheSize < 0 {
		return fmt.Errorf("SCENE_CACHE_SIZE must not be negative, got %d", c.SceneCacheSize)
	}
	return nil
}

// DefaultImageModel returns the model used when IMAGE_MODEL is unset.
func DefaultImageModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.5-flash-image"
	case ProviderVenice:
		return "venice-sd35"
	case ProviderOpenAI:
		return "gpt-image-1"
	default:
		return ""
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
