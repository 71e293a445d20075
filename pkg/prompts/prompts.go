package prompts

// Fixed parts of every scene prompt.
const (
	ScenePromptHeader = `Fantasy RPG scene illustration.
Wide horizontal composition (16:9).
Cinematic landscape framing.

IMPORTANT:
- The scene must fill the entire frame edge-to-edge.
- No borders, no margins, no white space.
- No blank background areas.
- The image should extend fully to all edges.

Style: detailed hand-painted fantasy art.`

	ScenePromptFooter = "No text, no UI, no labels."

	UnknownLocationName = "unknown place"
	NoEntitiesLine      = "No visible creatures."
)
