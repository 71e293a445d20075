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

// SceneRequest is the body of POST /v1/scene.
type SceneRequest struct {
	Prompt string `json:"prompt"`
}

// SceneResponse is the reply of POST /v1/scene. Exactly one field is set.
type SceneResponse struct {
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// GatewayClient generates images through another scene-engine API's
// /v1/scene endpoint, so clients never hold provider credentials.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a client for the scene gateway at baseURL.
func NewGatewayClient(baseURL string, httpClient *http.Client) *GatewayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GenerateImage posts the prompt and returns the gateway's image reference.
func (c *GatewayClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", generationError(config.ProviderGateway, ErrEmptyPrompt)
	}

	status, body, err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/scene", nil, SceneRequest{Prompt: prompt})
	if err != nil {
		return "", generationError(config.ProviderGateway, err)
	}

	var sceneResp SceneResponse
	if err := json.Unmarshal(body, &sceneResp); err != nil {
		if status != http.StatusOK {
			return "", generationError(config.ProviderGateway, statusError(status, body))
		}
		return "", generationError(config.ProviderGateway, fmt.Errorf("failed to parse response: %w", err))
	}

	if status != http.StatusOK {
		msg := sceneResp.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return "", generationError(config.ProviderGateway, fmt.Errorf("gateway returned %d: %s", status, msg))
	}
	if sceneResp.Image == "" {
		return "", generationError(config.ProviderGateway, ErrNoImage)
	}
	return sceneResp.Image, nil
}
