package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func TestRedisService_Basic(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		url  string
	}{
		{name: "host and port", url: mr.Addr()},
		{name: "redis url", url: "redis://" + mr.Addr() + "/0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewRedisService(tt.url, testLogger())
			require.NoError(t, err)
			defer func() { _ = svc.Close() }()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			require.NoError(t, svc.Ping(ctx))
			require.NoError(t, svc.WaitForConnection(ctx, 3, 10*time.Millisecond))
			assert.NotNil(t, svc.GetClient())
		})
	}
}

func TestRedisService_InvalidURL(t *testing.T) {
	_, err := NewRedisService("http://localhost:6379", testLogger())
	assert.Error(t, err)
}

func TestRedisService_WaitForConnectionGivesUp(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	svc, err := NewRedisService(addr, testLogger())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	err = svc.WaitForConnection(context.Background(), 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
