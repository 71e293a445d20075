package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

func TestSceneStateHandler_ServeHTTP(t *testing.T) {
	gen := services.NewMockImageGenerator()
	gen.SetResponse("img://cave1")
	sessions, cache := newTestSessions(t, gen)
	sessions.Session("p-1").Sync(context.Background(), &scene.Snapshot{
		Location: &scene.Location{ID: "cave1", Name: "Damp Cave"},
	})
	handler := NewSceneStateHandler(sessions, cache, testLogger())

	tests := []struct {
		name           string
		method         string
		target         string
		header         string
		expectedStatus int
	}{
		{name: "by query", method: http.MethodGet, target: "/v1/scene/state?player=p-1", expectedStatus: http.StatusOK},
		{name: "by header", method: http.MethodGet, target: "/v1/scene/state", header: "p-1", expectedStatus: http.StatusOK},
		{name: "missing player", method: http.MethodGet, target: "/v1/scene/state", expectedStatus: http.StatusBadRequest},
		{name: "unknown player", method: http.MethodGet, target: "/v1/scene/state?player=p-9", expectedStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, target: "/v1/scene/state?player=p-1", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(services.PlayerIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp SceneStateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "p-1", resp.PlayerID)
			assert.Equal(t, "img://cave1", resp.Scene.Image)
			assert.Equal(t, 1, resp.Cache.Entries)
			assert.Equal(t, uint64(1), resp.Cache.ProducerCalls)
		})
	}
}
