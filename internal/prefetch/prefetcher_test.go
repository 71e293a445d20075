package prefetch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-engine/internal/scenecache"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup(t *testing.T, gen services.ImageGenerator) (*scenesync.Pipeline, *scenecache.Cache) {
	t.Helper()
	cache, err := scenecache.New()
	require.NoError(t, err)
	return scenesync.NewPipeline(cache, gen, nil), cache
}

func room(id string) scene.Descriptor {
	return scene.NewDescriptor(id, id, "Room "+id+".")
}

func mustKey(t *testing.T, d scene.Descriptor) scene.Key {
	t.Helper()
	key, ok := d.Key()
	require.True(t, ok)
	return key
}

func TestPrefetch_Isolation(t *testing.T) {
	gen := services.NewMockImageGenerator()
	gen.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Location: A.") {
			return "", errors.New("provider refused")
		}
		return "img://B", nil
	}
	pipeline, cache := setup(t, gen)

	var mu sync.Mutex
	failures := map[scene.Key]error{}
	p := New(pipeline, testLogger(), WithFailureSink(func(key scene.Key, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures[key] = err
	}))

	res := p.Prefetch(context.Background(), []scene.Descriptor{room("A"), room("B")})

	assert.Equal(t, Result{Requested: 2, Cached: 1, Failed: 1}, res)
	image, ok := cache.Lookup(mustKey(t, room("B")))
	assert.True(t, ok)
	assert.Equal(t, "img://B", image)
	assert.False(t, cache.Contains(mustKey(t, room("A"))))
	assert.Contains(t, failures, mustKey(t, room("A")))
}

func TestPrefetch_DefaultSinkSwallowsFailures(t *testing.T) {
	gen := services.NewMockImageGenerator()
	gen.SetError(errors.New("down"))
	pipeline, _ := setup(t, gen)

	res := New(pipeline, testLogger()).Prefetch(context.Background(), []scene.Descriptor{room("A")})
	assert.Equal(t, 1, res.Failed)
}

func TestPrefetch_Skips(t *testing.T) {
	gen := services.NewMockImageGenerator()
	pipeline, cache := setup(t, gen)

	_, err := cache.GetOrCreate(context.Background(), mustKey(t, room("cached")), func(ctx context.Context) (string, error) {
		return "img://cached", nil
	})
	require.NoError(t, err)

	res := New(pipeline, testLogger()).Prefetch(context.Background(), []scene.Descriptor{
		room("cached"),
		{},          // no location
		room("new"), // generated
		room("new"), // duplicate within the batch
	})

	assert.Equal(t, Result{Requested: 4, Skipped: 3, Cached: 1}, res)
	assert.Equal(t, 1, gen.CallCount())
}

func TestPrefetch_ConcurrencyBound(t *testing.T) {
	var running, peak atomic.Int32
	gen := services.NewMockImageGenerator()
	gen.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return "img", nil
	}
	pipeline, _ := setup(t, gen)

	rooms := []scene.Descriptor{room("1"), room("2"), room("3"), room("4"), room("5"), room("6")}
	res := New(pipeline, testLogger(), WithConcurrency(2)).Prefetch(context.Background(), rooms)

	assert.Equal(t, 6, res.Cached)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestStart_RunsInBackground(t *testing.T) {
	release := make(chan struct{})
	gen := services.NewMockImageGenerator()
	gen.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		<-release
		return "img://hall", nil
	}
	pipeline, cache := setup(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	batch := New(pipeline, testLogger()).Start(ctx, []scene.Descriptor{room("hall")})
	cancel() // the request that triggered the batch is gone

	select {
	case <-batch.Done():
		t.Fatal("batch finished before the generation was released")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	res := batch.Wait()
	assert.Equal(t, 1, res.Cached)
	assert.True(t, cache.Contains(mustKey(t, room("hall"))))
}

func TestPrefetch_DoesNotTouchView(t *testing.T) {
	gen := services.NewMockImageGenerator()
	pipeline, cache := setup(t, gen)
	controller := scenesync.NewController(pipeline, testLogger())

	here := &scene.Snapshot{Location: &scene.Location{ID: "here", Name: "here"}}
	require.Equal(t, scenesync.OutcomeGenerated, controller.Apply(context.Background(), here))
	before := controller.View()

	New(pipeline, testLogger()).Prefetch(context.Background(), []scene.Descriptor{room("east"), room("west")})

	assert.Equal(t, before, controller.View())
	assert.Equal(t, 3, cache.Len())

	// Walking east is now a cache hit.
	east := &scene.Snapshot{Location: &scene.Location{ID: "east", Name: "east", Description: "Room east."}}
	assert.Equal(t, scenesync.OutcomeHit, controller.Apply(context.Background(), east))
}
