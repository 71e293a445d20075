package scenecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

func testKey(t *testing.T, id string, entities ...string) scene.Key {
	t.Helper()
	es := make([]scene.Entity, 0, len(entities))
	for _, name := range entities {
		es = append(es, scene.Entity{Type: "npc", Name: name})
	}
	key, ok := scene.NewDescriptor(id, id, "A place called "+id+".", es...).Key()
	require.True(t, ok)
	return key
}

func TestGetOrCreate_AtMostOneProducer(t *testing.T) {
	c := newTestCache(t)
	key := testKey(t, "cave1", "Rat")

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	produce := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "img://cave1-a", nil
	}

	const callers = 25
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	// First caller starts the flight; the rest join while it is blocked.
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.GetOrCreate(context.Background(), key, produce)
	}()
	<-started
	assert.True(t, c.InFlight(key))

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCreate(context.Background(), key, produce)
		}(i)
	}

	// Let the joiners reach the flight before releasing it.
	require.Eventually(t, func() bool {
		return c.Stats().Misses == callers
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "img://cave1-a", results[i])
	}
	assert.False(t, c.InFlight(key))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.ProducerCalls)
	assert.Greater(t, stats.SharedWaits, uint64(0))
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	c := newTestCache(t)
	key := testKey(t, "hall")

	calls := 0
	produce := func(ctx context.Context) (string, error) {
		calls++
		return fmt.Sprintf("img://hall-%d", calls), nil
	}

	first, err := c.GetOrCreate(context.Background(), key, produce)
	require.NoError(t, err)
	second, err := c.GetOrCreate(context.Background(), key, produce)
	require.NoError(t, err)

	assert.Equal(t, "img://hall-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	image, ok := c.Lookup(key)
	assert.True(t, ok)
	assert.Equal(t, first, image)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestGetOrCreate_FailureSharedAndNotStored(t *testing.T) {
	c := newTestCache(t)
	key := testKey(t, "crypt")
	boom := errors.New("backend down")

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	failing := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "", boom
	}

	errs := make([]error, 5)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = c.GetOrCreate(context.Background(), key, failing)
	}()
	<-started
	for i := 1; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrCreate(context.Background(), key, failing)
		}(i)
	}
	require.Eventually(t, func() bool {
		return c.Stats().Misses == uint64(len(errs))
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, c.Contains(key))
	assert.False(t, c.InFlight(key))
	assert.Equal(t, uint64(1), c.Stats().Failures)

	// A later call retries.
	image, err := c.GetOrCreate(context.Background(), key, func(ctx context.Context) (string, error) {
		return "img://crypt", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "img://crypt", image)
}

func TestGetOrCreate_DistinctKeysRunIndependently(t *testing.T) {
	c := newTestCache(t)
	a := testKey(t, "a")
	b := testKey(t, "b")

	aStarted := make(chan struct{})
	releaseA := make(chan struct{})
	done := make(chan string, 1)

	go func() {
		image, _ := c.GetOrCreate(context.Background(), a, func(ctx context.Context) (string, error) {
			close(aStarted)
			<-releaseA
			return "img://a", nil
		})
		done <- image
	}()
	<-aStarted

	// b completes while a is still blocked.
	image, err := c.GetOrCreate(context.Background(), b, func(ctx context.Context) (string, error) {
		return "img://b", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "img://b", image)
	assert.True(t, c.InFlight(a))

	close(releaseA)
	assert.Equal(t, "img://a", <-done)
}

func TestGetOrCreate_CallerCancelDoesNotCancelProducer(t *testing.T) {
	c := newTestCache(t)
	key := testKey(t, "tower")

	release := make(chan struct{})
	started := make(chan struct{})
	producerCtxErr := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreate(ctx, key, func(pctx context.Context) (string, error) {
			close(started)
			<-release
			producerCtxErr <- pctx.Err()
			return "img://tower", nil
		})
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.NoError(t, <-producerCtxErr)
	require.Eventually(t, func() bool { return c.Contains(key) }, time.Second, time.Millisecond)
}

func TestWithCapacity_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, WithCapacity(2))
	a, b, d := testKey(t, "a"), testKey(t, "b"), testKey(t, "d")

	fixed := func(v string) Producer {
		return func(ctx context.Context) (string, error) { return v, nil }
	}

	_, _ = c.GetOrCreate(context.Background(), a, fixed("img://a"))
	_, _ = c.GetOrCreate(context.Background(), b, fixed("img://b"))
	_, ok := c.Lookup(a) // a becomes most recently used
	require.True(t, ok)
	_, _ = c.GetOrCreate(context.Background(), d, fixed("img://d"))

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains(a))
	assert.False(t, c.Contains(b))
	assert.True(t, c.Contains(d))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestNew_UnboundedByDefault(t *testing.T) {
	c := newTestCache(t, WithCapacity(0))
	for i := 0; i < 100; i++ {
		key := testKey(t, fmt.Sprintf("room-%d", i))
		_, err := c.GetOrCreate(context.Background(), key, func(ctx context.Context) (string, error) {
			return "img", nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 100, c.Len())
	assert.Equal(t, uint64(0), c.Stats().Evictions)
}

func TestGetOrCreate_Cave1Scenario(t *testing.T) {
	c := newTestCache(t)
	rat, bat := 5, 3

	forward, ok := scene.NewDescriptor("cave1", "Cave", "",
		scene.Entity{Type: "npc", Name: "Rat", HP: &rat},
		scene.Entity{Type: "npc", Name: "Bat", HP: &bat},
	).Key()
	require.True(t, ok)
	reversed, ok := scene.NewDescriptor("cave1", "Cave", "",
		scene.Entity{Type: "npc", Name: "Bat", HP: &bat},
		scene.Entity{Type: "npc", Name: "Rat", HP: &rat},
	).Key()
	require.True(t, ok)
	require.Equal(t, forward, reversed)

	first, err := c.GetOrCreate(context.Background(), forward, func(ctx context.Context) (string, error) {
		return "img://cave1-a", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "img://cave1-a", first)

	second, err := c.GetOrCreate(context.Background(), reversed, func(ctx context.Context) (string, error) {
		return "img://cave1-b", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "img://cave1-a", second)
}
