package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/internal/telemetry"
)

var (
	// ErrNoImage means the provider answered but the response held no image.
	ErrNoImage = errors.New("no image in response")
	// ErrEmptyPrompt is returned before any request is made.
	ErrEmptyPrompt = errors.New("prompt is required")
)

// ImageGenerator turns a text prompt into an image reference.
// The reference is a data URI or URL that a client can display directly.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// GenerationError wraps any failure of an image provider.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("image generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func generationError(provider string, err error) error {
	return &GenerationError{Provider: provider, Err: err}
}

// dataURI encodes an inline base64 payload as a data URI.
func dataURI(mimeType, b64 string) string {
	return "data:" + mimeType + ";base64," + b64
}

// NewImageGenerator builds the provider selected in cfg, wrapped with tracing.
func NewImageGenerator(cfg *config.Config, logger *slog.Logger) (ImageGenerator, error) {
	httpClient := &http.Client{Timeout: cfg.ImageHTTPTimeout}

	var gen ImageGenerator
	switch cfg.ImageProvider {
	case config.ProviderGemini:
		gen = NewGeminiService(cfg.GeminiAPIKey, cfg.ImageModel, httpClient)
	case config.ProviderVenice:
		gen = NewVeniceService(cfg.VeniceAPIKey, cfg.ImageModel, cfg.SafePrompts, httpClient)
	case config.ProviderOpenAI:
		gen = NewOpenAIService(cfg.OpenAIAPIKey, cfg.ImageModel, httpClient)
	case config.ProviderGateway:
		gen = NewGatewayClient(cfg.SceneGatewayURL, httpClient)
	case config.ProviderMock:
		gen = NewMockImageGenerator()
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.ImageProvider)
	}

	logger.Info("Image provider configured",
		"provider", cfg.ImageProvider,
		"model", cfg.ImageModel,
		"timeout", cfg.ImageHTTPTimeout)

	return WithTracing(gen, cfg.ImageProvider, cfg.ImageModel), nil
}

type tracedGenerator struct {
	next     ImageGenerator
	provider string
	model    string
}

// WithTracing records a span around every generation call.
func WithTracing(gen ImageGenerator, provider, model string) ImageGenerator {
	return &tracedGenerator{next: gen, provider: provider, model: model}
}

func (t *tracedGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "imagegen.GenerateImage")
	defer span.End()

	span.SetAttributes(
		attribute.String("imagegen.provider", t.provider),
		attribute.String("imagegen.model", t.model),
		attribute.Int("imagegen.prompt_length", len(prompt)),
	)

	ref, err := t.next.GenerateImage(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Bool("imagegen.data_uri", strings.HasPrefix(ref, "data:")))
	return ref, nil
}
