package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/scene-engine/internal/scenecache"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/session"
)

// SceneStateResponse reports a player's scene view and the shared cache.
type SceneStateResponse struct {
	PlayerID string           `json:"player_id"`
	Scene    scenesync.View   `json:"scene"`
	Cache    CacheStatsResult `json:"cache"`
}

type CacheStatsResult struct {
	Entries int `json:"entries"`
	scenecache.Stats
}

// SceneStateHandler serves GET /v1/scene/state?player={playerID}
type SceneStateHandler struct {
	sessions *session.Manager
	cache    *scenecache.Cache
	logger   *slog.Logger
}

// NewSceneStateHandler creates a new scene state handler
func NewSceneStateHandler(sessions *session.Manager, cache *scenecache.Cache, logger *slog.Logger) *SceneStateHandler {
	return &SceneStateHandler{
		sessions: sessions,
		cache:    cache,
		logger:   logger,
	}
}

func (h *SceneStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	playerID := strings.TrimSpace(r.URL.Query().Get("player"))
	if playerID == "" {
		playerID = strings.TrimSpace(r.Header.Get(services.PlayerIDHeader))
	}
	if playerID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Missing player id.")
		return
	}

	sess, ok := h.sessions.Lookup(playerID)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "No scene session for player.")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, SceneStateResponse{
		PlayerID: playerID,
		Scene:    sess.View(),
		Cache: CacheStatsResult{
			Entries: h.cache.Len(),
			Stats:   h.cache.Stats(),
		},
	})
}
