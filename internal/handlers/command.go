package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/session"
)

// CommandResult is the game server's reply plus the player's scene view.
type CommandResult struct {
	OK       bool            `json:"ok"`
	Messages []string        `json:"messages,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Error    string          `json:"error,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Scene    *scenesync.View `json:"scene,omitempty"`
}

// CommandHandler proxies player commands to the game server and keeps each
// player's scene session in step with the returned state.
type CommandHandler struct {
	gameServer services.GameServer
	sessions   *session.Manager
	logger     *slog.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(gameServer services.GameServer, sessions *session.Manager, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		gameServer: gameServer,
		sessions:   sessions,
		logger:     logger,
	}
}

// ServeHTTP handles POST /v1/command. By default the reply waits for the
// foreground scene to settle; ?scene=async returns at once and the scene
// follows on the event stream.
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var req services.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'text' field.")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Command text cannot be empty.")
		return
	}

	playerID := strings.TrimSpace(r.Header.Get(services.PlayerIDHeader))
	resp, err := h.gameServer.SendCommand(r.Context(), req.Text, playerID)
	if err != nil {
		h.logger.Error("Game server request failed", "error", err, "player_id", playerID)
		writeError(w, h.logger, http.StatusBadGateway, "network error")
		return
	}

	result := CommandResult{
		OK:       resp.OK,
		Messages: resp.Messages,
		State:    resp.State,
		Error:    resp.Error,
		PlayerID: playerID,
	}

	// Only a state triggers scene re-evaluation.
	if snap := resp.Snapshot(); snap != nil {
		if id := snap.PlayerID(); id != "" {
			result.PlayerID = id
		}
		if result.PlayerID != "" {
			sess := h.sessions.Session(result.PlayerID)
			if r.URL.Query().Get("scene") == "async" {
				go sess.Sync(context.WithoutCancel(r.Context()), snap)
			} else {
				sess.Sync(r.Context(), snap)
				view := sess.View()
				result.Scene = &view
			}
		}
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
