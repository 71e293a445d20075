package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/scene-engine/internal/services"
)

// SceneHandler is the image generation gateway: it turns a prompt into an
// image without exposing provider credentials to clients.
type SceneHandler struct {
	generator services.ImageGenerator
	logger    *slog.Logger
}

// NewSceneHandler creates a new scene handler
func NewSceneHandler(generator services.ImageGenerator, logger *slog.Logger) *SceneHandler {
	return &SceneHandler{
		generator: generator,
		logger:    logger,
	}
}

// ServeHTTP handles POST /v1/scene
func (h *SceneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var req services.SceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		h.logger.Warn("Missing or invalid prompt", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Missing or invalid prompt")
		return
	}

	image, err := h.generator.GenerateImage(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("Scene image generation failed", "error", err, "prompt_length", len(req.Prompt))
		msg := "Image generation failed"
		if errors.Is(err, services.ErrNoImage) {
			msg = "No image in response"
		}
		writeError(w, h.logger, http.StatusInternalServerError, msg)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, services.SceneResponse{Image: image})
}
