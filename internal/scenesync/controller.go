// Package scenesync keeps the displayed scene image in step with the game
// state the server returns.
package scenesync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Controller owns the View for one player. It is safe for concurrent use;
// Apply calls may overlap and the most recently applied scene wins.
type Controller struct {
	pipeline *Pipeline
	logger   *slog.Logger

	mu   sync.Mutex
	view View

	// published is the last view handed to observers. View reads it without mu.
	published atomic.Pointer[View]

	// notifyMu is taken before mu is released so observers see changes in order.
	notifyMu  sync.Mutex
	observers []Observer
}

// NewController creates a controller with an empty view.
func NewController(pipeline *Pipeline, logger *slog.Logger) *Controller {
	return &Controller{
		pipeline: pipeline,
		logger:   logger,
	}
}

// Subscribe registers an observer. Observers may call View but must not call
// Apply or Subscribe.
func (c *Controller) Subscribe(o Observer) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.observers = append(c.observers, o)
}

// View returns a copy of the current view.
func (c *Controller) View() View {
	if v := c.published.Load(); v != nil {
		return *v
	}
	return View{}
}

// Apply brings the view in line with snap and returns once the foreground
// scene has settled. A nil snapshot is skipped.
func (c *Controller) Apply(ctx context.Context, snap *scene.Snapshot) Outcome {
	if snap != nil && snap.SceneDirty != nil && !*snap.SceneDirty {
		// The server's hint is advisory; the key comparison decides.
		c.logger.Debug("Snapshot marked scene clean", "player_id", snap.PlayerID())
	}
	return c.ApplyDescriptor(ctx, snap.Descriptor())
}

// ApplyDescriptor is Apply for an already extracted scene.
func (c *Controller) ApplyDescriptor(ctx context.Context, d scene.Descriptor) Outcome {
	key, ok := d.Key()
	if !ok {
		return OutcomeSkipped
	}

	c.mu.Lock()
	if key == c.view.CurrentKey {
		c.mu.Unlock()
		return OutcomeUnchanged
	}
	// Record the key before any waiting so older completions can tell they are stale.
	c.view.CurrentKey = key
	if image, ok := c.pipeline.Cache().Lookup(key); ok {
		c.view.Image = image
		c.view.Loading = false
		c.publishLocked()
		c.logger.Debug("Scene cache hit", "scene_key", key.Short())
		return OutcomeHit
	}
	c.view.Loading = true
	c.publishLocked()

	// The generation runs to completion even if the caller stops waiting;
	// only a newer key decides whether its image is shown.
	_, image, err := c.pipeline.Render(context.WithoutCancel(ctx), d)

	c.mu.Lock()
	if c.view.CurrentKey != key {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale scene result", "scene_key", key.Short())
		return OutcomeSuperseded
	}
	c.view.Loading = false
	if err != nil {
		c.publishLocked()
		c.logger.Debug("Scene image unavailable", "scene_key", key.Short(), "error", err)
		return OutcomeFailed
	}
	c.view.Image = image
	c.publishLocked()
	return OutcomeGenerated
}

// publishLocked releases mu and delivers the view to observers.
func (c *Controller) publishLocked() {
	v := c.view
	c.published.Store(&v)
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, o := range c.observers {
		o(v)
	}
}
