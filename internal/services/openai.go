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

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIService generates scene images with the OpenAI Images API.
type OpenAIService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
}

// OpenAIImageRequest represents the request structure for image generation
type OpenAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// OpenAIImageResponse represents the response structure for image generation
type OpenAIImageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates a new OpenAI image client
func NewOpenAIService(apiKey, modelName string, httpClient *http.Client) *OpenAIService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if modelName == "" {
		modelName = config.DefaultImageModel(config.ProviderOpenAI)
	}
	return &OpenAIService{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    openAIBaseURL,
		httpClient: httpClient,
	}
}

// WithBaseURL points the client at a different API root.
func (o *OpenAIService) WithBaseURL(baseURL string) *OpenAIService {
	o.baseURL = strings.TrimRight(baseURL, "/")
	return o
}

// GenerateImage requests one landscape image. Inline payloads come back as
// data URIs; hosted images come back as their URL.
func (o *OpenAIService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", generationError(config.ProviderOpenAI, ErrEmptyPrompt)
	}

	openAIReq := OpenAIImageRequest{
		Model:  o.modelName,
		Prompt: prompt,
		N:      1,
		Size:   "1536x1024",
	}
	// dall-e models return URLs unless asked otherwise and only know square-ish sizes.
	if strings.HasPrefix(o.modelName, "dall-e") {
		openAIReq.ResponseFormat = "b64_json"
		openAIReq.Size = "1792x1024"
	}

	status, body, err := postJSON(ctx, o.httpClient, o.baseURL+"/images/generations", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, openAIReq)
	if err != nil {
		return "", generationError(config.ProviderOpenAI, err)
	}
	if status != http.StatusOK {
		return "", generationError(config.ProviderOpenAI, statusError(status, body))
	}

	var openAIResp OpenAIImageResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return "", generationError(config.ProviderOpenAI, fmt.Errorf("failed to parse response: %w", err))
	}
	if openAIResp.Error != nil {
		return "", generationError(config.ProviderOpenAI, fmt.Errorf("API error: %s", openAIResp.Error.Message))
	}
	if len(openAIResp.Data) == 0 {
		return "", generationError(config.ProviderOpenAI, ErrNoImage)
	}

	img := openAIResp.Data[0]
	switch {
	case img.B64JSON != "":
		return dataURI("image/png", img.B64JSON), nil
	case img.URL != "":
		return img.URL, nil
	default:
		return "", generationError(config.ProviderOpenAI, ErrNoImage)
	}
}
