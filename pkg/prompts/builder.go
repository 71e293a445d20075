// Package prompts turns scene descriptors into image generation prompts.
package prompts

import (
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/scene"
	"github.com/jwebster45206/scene-engine/pkg/textfilter"
)

// Builder constructs a scene prompt using a fluent interface.
type Builder struct {
	locationName string
	description  string
	entities     []string
	filter       *textfilter.PromptFilter
}

// New creates an empty prompt builder.
func New() *Builder {
	return &Builder{
		entities: make([]string, 0),
	}
}

// WithDescriptor sets location and entities from a scene descriptor.
// Entities are listed in key order so equal keys always produce equal prompts.
func (b *Builder) WithDescriptor(d scene.Descriptor) *Builder {
	b.locationName = d.LocationName
	b.description = d.LocationDescription
	b.entities = b.entities[:0]
	for _, e := range d.SortedEntities() {
		if e.Name != "" {
			b.entities = append(b.entities, e.Name)
		}
	}
	return b
}

// WithLocation sets the location name and description directly.
func (b *Builder) WithLocation(name, description string) *Builder {
	b.locationName = name
	b.description = description
	return b
}

// WithEntities sets the visible creatures or objects by name.
func (b *Builder) WithEntities(names ...string) *Builder {
	b.entities = append(b.entities[:0], names...)
	return b
}

// WithFilter enables prompt sanitizing. A nil filter leaves text untouched.
func (b *Builder) WithFilter(f *textfilter.PromptFilter) *Builder {
	b.filter = f
	return b
}

// Build returns the final prompt text.
func (b *Builder) Build() string {
	name := textfilter.CollapseWhitespace(b.locationName)
	if name == "" {
		name = UnknownLocationName
	}
	description := textfilter.CollapseWhitespace(b.description)

	entityLine := NoEntitiesLine
	if len(b.entities) > 0 {
		entityLine = "Visible creatures or objects: " + strings.Join(b.entities, ", ") + "."
	}

	if b.filter != nil {
		name = b.filter.FilterText(name)
		description = b.filter.FilterText(description)
		entityLine = b.filter.FilterText(entityLine)
	}

	var sb strings.Builder
	sb.WriteString(ScenePromptHeader)
	sb.WriteString("\nLocation: " + name + ".")
	sb.WriteString("\nDescription: " + description)
	sb.WriteString("\n" + entityLine)
	sb.WriteString("\n\n" + ScenePromptFooter)
	return sb.String()
}

// Prompter builds scene prompts with a shared configuration.
// It is safe for concurrent use.
type Prompter struct {
	filter *textfilter.PromptFilter
}

// NewPrompter creates a prompter; safe enables flagged-term replacement.
func NewPrompter(safe bool) *Prompter {
	p := &Prompter{}
	if safe {
		p.filter = textfilter.NewPromptFilter()
	}
	return p
}

// ScenePrompt builds the prompt for one scene.
func (p *Prompter) ScenePrompt(d scene.Descriptor) string {
	var filter *textfilter.PromptFilter
	if p != nil {
		filter = p.filter
	}
	return New().WithDescriptor(d).WithFilter(filter).Build()
}

// BuildScenePrompt is a convenience function for the unfiltered case.
func BuildScenePrompt(d scene.Descriptor) string {
	return New().WithDescriptor(d).Build()
}
