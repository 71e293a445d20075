package scenesync

import "github.com/jwebster45206/scene-engine/pkg/scene"

// View is the UI-facing scene state. Only the Controller changes it.
type View struct {
	CurrentKey scene.Key `json:"current_key,omitempty"`
	Image      string    `json:"image,omitempty"`
	Loading    bool      `json:"loading"`
}

// HasImage reports whether an illustration is available to display.
func (v View) HasImage() bool {
	return v.Image != ""
}

// Observer receives a copy of the view after every change.
type Observer func(View)

// Outcome describes what one Apply call did.
type Outcome int

const (
	// OutcomeSkipped means the snapshot had no location.
	OutcomeSkipped Outcome = iota
	// OutcomeUnchanged means the scene key matched the current one.
	OutcomeUnchanged
	// OutcomeHit means the image came straight from the cache.
	OutcomeHit
	// OutcomeGenerated means an image was produced or joined and displayed.
	OutcomeGenerated
	// OutcomeFailed means generation failed; the previous image stays.
	OutcomeFailed
	// OutcomeSuperseded means a newer scene was applied while this one loaded.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeHit:
		return "hit"
	case OutcomeGenerated:
		return "generated"
	case OutcomeFailed:
		return "failed"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}
