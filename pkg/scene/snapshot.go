package scene

// Exit is a labelled connection from one location to another.
type Exit struct {
	To    string `json:"to"`    // Destination location ID
	Label string `json:"label"` // Direction or name shown to the player
}

// Location is the location view the game server sends with every state.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Exits       []Exit `json:"exits,omitempty"`
}

// Entity is anything visible at a location: monsters, items, NPCs and other players.
type Entity struct {
	EntityID string `json:"entity_id,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`           // "monster", "item", "npc" or "player"
	HP       *int   `json:"hp,omitempty"`   // Only known for combat entities
	Role     string `json:"role,omitempty"` // e.g. "shop"
}

// Player is the current player's sheet.
type Player struct {
	PlayerID  string         `json:"player_id"`
	Name      string         `json:"name"`
	Location  string         `json:"location"`
	Level     int            `json:"level"`
	XP        int            `json:"xp"`
	HP        int            `json:"hp"`
	MaxHP     int            `json:"max_hp"`
	Inventory map[string]int `json:"inventory,omitempty"`

	ActiveQuests    map[string]Quest `json:"active_quests,omitempty"`
	CompletedQuests map[string]Quest `json:"completed_quests,omitempty"`
}

// Quest is a quest entry as shown in the player's journal.
type Quest struct {
	QuestID string `json:"quest_id"`
	Name    string `json:"name"`
}

// AdjacentScene is a preview of a location reachable from the current one,
// sent by the server so clients can prefetch scene images.
type AdjacentScene struct {
	Location *Location `json:"location,omitempty"`
	Entities []Entity  `json:"entities,omitempty"`
}

// Snapshot is the game state returned with a command response.
// It is read-only to the scene engine.
type Snapshot struct {
	Player         *Player         `json:"player,omitempty"`
	Location       *Location       `json:"location,omitempty"`
	Entities       []Entity        `json:"entities,omitempty"`
	AdjacentScenes []AdjacentScene `json:"adjacent_scenes,omitempty"`

	// SceneDirty is a server hint that the visual scene may have changed.
	// Scene changes are detected by key comparison, so it is advisory only.
	SceneDirty *bool `json:"scene_dirty,omitempty"`
}

// PlayerID returns the player ID carried by the snapshot, or "".
func (s *Snapshot) PlayerID() string {
	if s == nil || s.Player == nil {
		return ""
	}
	return s.Player.PlayerID
}

// Descriptor reduces the snapshot to the scene currently in view.
func (s *Snapshot) Descriptor() Descriptor {
	if s == nil {
		return Descriptor{}
	}
	return newDescriptor(s.Location, s.Entities)
}

// AdjacentDescriptors reduces every adjacent scene preview to a descriptor,
// preserving the server's order.
func (s *Snapshot) AdjacentDescriptors() []Descriptor {
	if s == nil || len(s.AdjacentScenes) == 0 {
		return nil
	}
	out := make([]Descriptor, 0, len(s.AdjacentScenes))
	for _, adj := range s.AdjacentScenes {
		out = append(out, newDescriptor(adj.Location, adj.Entities))
	}
	return out
}
