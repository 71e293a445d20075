// Package prefetch warms the scene cache for scenes the player can reach next.
package prefetch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

const defaultConcurrency = 2

// FailureSink receives prefetch failures. It is never the foreground path.
type FailureSink func(key scene.Key, err error)

// Discard is the default FailureSink.
func Discard(scene.Key, error) {}

// Result summarizes one prefetch batch.
type Result struct {
	Requested int
	Skipped   int // no key, duplicate in batch, or already cached
	Cached    int
	Failed    int
}

// Prefetcher renders scenes into the shared cache without touching any view.
type Prefetcher struct {
	pipeline    *scenesync.Pipeline
	concurrency int
	sink        FailureSink
	logger      *slog.Logger
}

// Option configures a Prefetcher.
type Option func(*Prefetcher)

// WithConcurrency bounds how many generations one batch runs at once.
func WithConcurrency(n int) Option {
	return func(p *Prefetcher) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithFailureSink replaces the default no-op sink.
func WithFailureSink(sink FailureSink) Option {
	return func(p *Prefetcher) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// New creates a prefetcher rendering through pipeline.
func New(pipeline *scenesync.Pipeline, logger *slog.Logger, opts ...Option) *Prefetcher {
	p := &Prefetcher{
		pipeline:    pipeline,
		concurrency: defaultConcurrency,
		sink:        Discard,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Batch is a prefetch running in the background.
type Batch struct {
	done   chan struct{}
	result Result
}

// Wait blocks until every scene in the batch has been attempted.
func (b *Batch) Wait() Result {
	<-b.done
	return b.result
}

// Done is closed when the batch finishes.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Start prefetches in the background and returns immediately. The batch
// outlives ctx's cancellation; issued generations always run to completion.
func (p *Prefetcher) Start(ctx context.Context, descriptors []scene.Descriptor) *Batch {
	b := &Batch{done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(b.done)
		b.result = p.Prefetch(detached, descriptors)
	}()
	return b
}

// Prefetch renders every descriptor that is not cached yet and returns when
// all have been attempted. A failure never stops the others.
func (p *Prefetcher) Prefetch(ctx context.Context, descriptors []scene.Descriptor) Result {
	res := Result{Requested: len(descriptors)}
	cache := p.pipeline.Cache()

	seen := make(map[scene.Key]struct{}, len(descriptors))
	var cached, failed atomic.Int32

	// Plain errgroup: no shared context, so one failure cannot cancel siblings.
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, d := range descriptors {
		key, ok := d.Key()
		if !ok {
			res.Skipped++
			continue
		}
		if _, dup := seen[key]; dup || cache.Contains(key) {
			res.Skipped++
			continue
		}
		seen[key] = struct{}{}

		g.Go(func() error {
			if _, _, err := p.pipeline.Render(ctx, d); err != nil {
				failed.Add(1)
				p.sink(key, err)
				return nil
			}
			cached.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Cached = int(cached.Load())
	res.Failed = int(failed.Load())
	if res.Cached > 0 || res.Failed > 0 {
		p.logger.Debug("Prefetch finished",
			"requested", res.Requested,
			"cached", res.Cached,
			"failed", res.Failed,
			"skipped", res.Skipped)
	}
	return res
}
