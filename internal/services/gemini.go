package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/scene-engine/internal/config"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiService generates scene images with the Gemini generateContent API.
type GeminiService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
}

type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type GeminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *GeminiImageConfig `json:"imageConfig,omitempty"`
}

// GeminiGenerateRequest is the generateContent request body.
type GeminiGenerateRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiGenerateResponse is the subset of the generateContent response we read.
type GeminiGenerateResponse struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiService creates a Gemini image client. A nil httpClient gets a
// client with a two minute timeout.
func NewGeminiService(apiKey, modelName string, httpClient *http.Client) *GeminiService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if modelName == "" {
		modelName = config.DefaultImageModel(config.ProviderGemini)
	}
	return &GeminiService{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    geminiBaseURL,
		httpClient: httpClient,
	}
}

// WithBaseURL points the client at a different API root.
func (g *GeminiService) WithBaseURL(baseURL string) *GeminiService {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// GenerateImage asks Gemini for a single scene image and returns it as a data URI.
func (g *GeminiService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", generationError(config.ProviderGemini, ErrEmptyPrompt)
	}

	geminiReq := GeminiGenerateRequest{
		Contents: []GeminiContent{{
			Role:  "user",
			Parts: []GeminiPart{{Text: prompt}},
		}},
		GenerationConfig: &GeminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &GeminiImageConfig{AspectRatio: "16:9"},
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.modelName)
	status, body, err := postJSON(ctx, g.httpClient, url, map[string]string{
		"x-goog-api-key": g.apiKey,
	}, geminiReq)
	if err != nil {
		return "", generationError(config.ProviderGemini, err)
	}
	if status != http.StatusOK {
		return "", generationError(config.ProviderGemini, statusError(status, body))
	}

	var geminiResp GeminiGenerateResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", generationError(config.ProviderGemini, fmt.Errorf("failed to parse response: %w", err))
	}
	if geminiResp.Error != nil {
		return "", generationError(config.ProviderGemini, fmt.Errorf("API error: %s", geminiResp.Error.Message))
	}
	if geminiResp.PromptFeedback != nil && geminiResp.PromptFeedback.BlockReason != "" {
		return "", generationError(config.ProviderGemini,
			fmt.Errorf("%w: prompt blocked (%s)", ErrNoImage, geminiResp.PromptFeedback.BlockReason))
	}

	// The model may interleave text parts; the first image part wins.
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			if strings.HasPrefix(part.InlineData.MimeType, "image/") {
				return dataURI(part.InlineData.MimeType, part.InlineData.Data), nil
			}
		}
	}
	return "", generationError(config.ProviderGemini, ErrNoImage)
}
