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

const veniceBaseURL = "https://api.venice.ai/api/v1"

// Scene images are wide; Venice caps each side at 1280.
const (
	veniceImageWidth  = 1280
	veniceImageHeight = 720
	veniceImageFormat = "webp"
)

// VeniceService generates scene images with the Venice AI image API.
type VeniceService struct {
	apiKey     string
	modelName  string
	safeMode   bool
	baseURL    string
	httpClient *http.Client
}

// VeniceImageRequest represents the request structure for Venice AI image generation
type VeniceImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Format         string `json:"format"`
	SafeMode       bool   `json:"safe_mode"`
	HideWatermark  bool   `json:"hide_watermark"`
	ReturnBinary   bool   `json:"return_binary"`
	EmbedExifMeta  bool   `json:"embed_exif_metadata"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// VeniceImageResponse represents the response structure for Venice AI image generation
type VeniceImageResponse struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// NewVeniceService creates a new Venice AI image client
func NewVeniceService(apiKey, modelName string, safeMode bool, httpClient *http.Client) *VeniceService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if modelName == "" {
		modelName = config.DefaultImageModel(config.ProviderVenice)
	}
	return &VeniceService{
		apiKey:     apiKey,
		modelName:  modelName,
		safeMode:   safeMode,
		baseURL:    veniceBaseURL,
		httpClient: httpClient,
	}
}

// WithBaseURL points the client at a different API root.
func (v *VeniceService) WithBaseURL(baseURL string) *VeniceService {
	v.baseURL = strings.TrimRight(baseURL, "/")
	return v
}

// GenerateImage requests one image and returns it as a data URI.
func (v *VeniceService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", generationError(config.ProviderVenice, ErrEmptyPrompt)
	}

	veniceReq := VeniceImageRequest{
		Model:          v.modelName,
		Prompt:         prompt,
		Width:          veniceImageWidth,
		Height:         veniceImageHeight,
		Format:         veniceImageFormat,
		SafeMode:       v.safeMode,
		HideWatermark:  true,
		ReturnBinary:   false,
		NegativePrompt: "text, watermark, user interface, labels",
	}

	status, body, err := postJSON(ctx, v.httpClient, v.baseURL+"/image/generate", map[string]string{
		"Authorization": "Bearer " + v.apiKey,
	}, veniceReq)
	if err != nil {
		return "", generationError(config.ProviderVenice, err)
	}
	if status != http.StatusOK {
		return "", generationError(config.ProviderVenice, statusError(status, body))
	}

	var veniceResp VeniceImageResponse
	if err := json.Unmarshal(body, &veniceResp); err != nil {
		return "", generationError(config.ProviderVenice, fmt.Errorf("failed to parse response: %w", err))
	}
	if veniceResp.Error != "" {
		return "", generationError(config.ProviderVenice, fmt.Errorf("API error: %s", veniceResp.Error))
	}
	if len(veniceResp.Images) == 0 || veniceResp.Images[0] == "" {
		return "", generationError(config.ProviderVenice, ErrNoImage)
	}

	return dataURI("image/"+veniceImageFormat, veniceResp.Images[0]), nil
}
