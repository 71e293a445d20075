package handlers

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-engine/internal/prefetch"
	"github.com/jwebster45206/scene-engine/internal/scenecache"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func newTestSessions(t *testing.T, gen services.ImageGenerator) (*session.Manager, *scenecache.Cache) {
	t.Helper()
	cache, err := scenecache.New()
	require.NoError(t, err)
	pipeline := scenesync.NewPipeline(cache, gen, nil)
	return session.NewManager(pipeline, prefetch.New(pipeline, testLogger()), nil, testLogger()), cache
}
