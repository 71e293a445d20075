package scenesync

import (
	"context"
	"errors"

	"github.com/jwebster45206/scene-engine/internal/scenecache"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// ErrNoScene is returned when a descriptor has no location and so no key.
var ErrNoScene = errors.New("scene has no location")

// Pipeline is the shared path from a scene descriptor to a cached image.
// The foreground controller and the prefetcher both render through it so
// they deduplicate against each other.
type Pipeline struct {
	cache     *scenecache.Cache
	generator services.ImageGenerator
	prompter  *prompts.Prompter
}

// NewPipeline creates a pipeline. A nil prompter builds unfiltered prompts.
func NewPipeline(cache *scenecache.Cache, generator services.ImageGenerator, prompter *prompts.Prompter) *Pipeline {
	return &Pipeline{
		cache:     cache,
		generator: generator,
		prompter:  prompter,
	}
}

// Cache returns the underlying scene cache.
func (p *Pipeline) Cache() *scenecache.Cache {
	return p.cache
}

// Render returns the image for d, generating it on a miss.
func (p *Pipeline) Render(ctx context.Context, d scene.Descriptor) (scene.Key, string, error) {
	key, ok := d.Key()
	if !ok {
		return "", "", ErrNoScene
	}
	image, err := p.cache.GetOrCreate(ctx, key, p.producer(d))
	return key, image, err
}

// producer builds the prompt lazily so cache hits never pay for it.
func (p *Pipeline) producer(d scene.Descriptor) scenecache.Producer {
	return func(ctx context.Context) (string, error) {
		return p.generator.GenerateImage(ctx, p.prompter.ScenePrompt(d))
	}
}
