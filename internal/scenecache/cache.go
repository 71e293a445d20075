// Package scenecache maps scene keys to generated images and guarantees that
// at most one generation per key is running at any time.
package scenecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/jwebster45206/scene-engine/internal/telemetry"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Producer generates the image for one scene. It is called at most once per
// key at a time and runs detached from the caller's cancellation.
type Producer func(ctx context.Context) (string, error)

// Stats are cumulative counters for logging and tests.
type Stats struct {
	// Hits counts GetOrCreate calls answered from the store.
	Hits uint64 `json:"hits"`
	// Misses counts GetOrCreate calls that joined or started a flight.
	Misses        uint64 `json:"misses"`
	ProducerCalls uint64 `json:"producer_calls"`
	// SharedWaits counts callers that received a result shared with others.
	SharedWaits uint64 `json:"shared_waits"`
	Failures    uint64 `json:"failures"`
	Evictions   uint64 `json:"evictions"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	store    store
	inflight map[scene.Key]struct{}
	stats    Stats

	group  singleflight.Group
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	capacity int
	logger   *slog.Logger
}

// WithCapacity bounds the cache to n entries with least-recently-used
// eviction. n <= 0 keeps the default unbounded store.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates an empty cache.
func New(opts ...Option) (*Cache, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	c := &Cache{
		inflight: make(map[scene.Key]struct{}),
		logger:   o.logger,
	}

	if o.capacity > 0 {
		// Eviction callbacks run inside add, with c.mu already held.
		s, err := newLRUStore(o.capacity, func(key scene.Key) {
			c.stats.Evictions++
			c.logger.Debug("Scene evicted", "scene_key", key.Short())
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create lru store: %w", err)
		}
		c.store = s
	} else {
		c.store = make(mapStore)
	}
	return c, nil
}

// Lookup returns the cached image for key, if any.
func (c *Cache) Lookup(key scene.Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.get(key)
}

// Contains reports whether key has a finished image.
func (c *Cache) Contains(key scene.Key) bool {
	_, ok := c.Lookup(key)
	return ok
}

// InFlight reports whether a producer for key is currently running.
func (c *Cache) InFlight(key scene.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// GetOrCreate returns the image for key, running produce only when the key is
// neither cached nor already being produced. Concurrent callers for the same
// key share one outcome. Failures are returned to every waiter and nothing is
// stored, so a later call retries.
//
// If ctx ends first, the caller stops waiting and gets ctx.Err(); the
// producer keeps running and its result is still stored.
func (c *Cache) GetOrCreate(ctx context.Context, key scene.Key, produce Producer) (string, error) {
	c.mu.Lock()
	if image, ok := c.store.get(key); ok {
		c.stats.Hits++
		c.mu.Unlock()
		return image, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key), func() (any, error) {
		return c.fly(flightCtx, key, produce)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.mu.Lock()
			c.stats.SharedWaits++
			c.mu.Unlock()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// fly runs inside the single flight for key.
func (c *Cache) fly(ctx context.Context, key scene.Key, produce Producer) (string, error) {
	// A flight for key may have finished between our miss and joining the group.
	c.mu.Lock()
	if image, ok := c.store.get(key); ok {
		c.mu.Unlock()
		return image, nil
	}
	c.inflight[key] = struct{}{}
	c.stats.ProducerCalls++
	c.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "scenecache.produce")
	span.SetAttributes(attribute.String("scene.key", key.Short()))
	defer span.End()

	c.logger.Debug("Generating scene image", "scene_key", key.Short())
	image, err := produce(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if err != nil {
		c.stats.Failures++
	} else {
		c.store.add(key, image)
	}
	c.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("Scene image generation failed", "scene_key", key.Short(), "error", err)
		return "", err
	}
	c.logger.Debug("Scene image cached", "scene_key", key.Short())
	return image, nil
}
