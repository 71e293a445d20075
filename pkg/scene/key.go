// Package scene describes what the scene illustration should show and derives
// the canonical cache key for it.
package scene

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Key identifies a scene for caching. Two descriptors have the same key iff
// they draw the same scene.
type Key string

// Descriptor is the visual subject of a scene: a location plus the entities in it.
type Descriptor struct {
	LocationID          string
	LocationName        string // Used by the prompt only, not part of the key
	LocationDescription string
	Entities            []Entity
	hasLocation         bool
}

// NewDescriptor builds a descriptor for a known location.
func NewDescriptor(id, name, description string, entities ...Entity) Descriptor {
	return newDescriptor(&Location{ID: id, Name: name, Description: description}, entities)
}

func newDescriptor(loc *Location, entities []Entity) Descriptor {
	if loc == nil {
		return Descriptor{}
	}
	return Descriptor{
		LocationID:          loc.ID,
		LocationName:        loc.Name,
		LocationDescription: loc.Description,
		Entities:            entities,
		hasLocation:         true,
	}
}

// HasLocation reports whether the descriptor names a location.
func (d Descriptor) HasLocation() bool {
	return d.hasLocation
}

// Key is shorthand for DeriveKey(d).
func (d Descriptor) Key() (Key, bool) {
	return DeriveKey(d)
}

// SortedEntities returns a copy of the entities ordered by name (ordinal,
// case-sensitive), then type, then hp with a missing hp first. Entities that
// tie on all three are identical in the key.
func (d Descriptor) SortedEntities() []Entity {
	sorted := slices.Clone(d.Entities)
	slices.SortStableFunc(sorted, func(a, b Entity) int {
		return cmp.Or(
			strings.Compare(a.Name, b.Name),
			strings.Compare(a.Type, b.Type),
			compareHP(a.HP, b.HP),
		)
	})
	return sorted
}

func compareHP(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

type keyEntity struct {
	Type string `json:"type"`
	Name string `json:"name"`
	HP   *int   `json:"hp"`
}

type keyPayload struct {
	LocationID          string      `json:"locationId"`
	LocationDescription string      `json:"locationDescription"`
	Entities            []keyEntity `json:"entities"`
}

// DeriveKey maps a descriptor to its scene key. It returns false when the
// descriptor has no location, in which case caching does not apply.
//
// Only the location ID, location description and each entity's type, name and
// hp contribute; entities are sorted on those fields so submission order never
// changes the key.
func DeriveKey(d Descriptor) (Key, bool) {
	if !d.hasLocation {
		return "", false
	}

	payload := keyPayload{
		LocationID:          d.LocationID,
		LocationDescription: d.LocationDescription,
		Entities:            make([]keyEntity, 0, len(d.Entities)),
	}
	for _, e := range d.SortedEntities() {
		payload.Entities = append(payload.Entities, keyEntity{Type: e.Type, Name: e.Name, HP: e.HP})
	}

	// Struct fields marshal in declaration order, so the output is stable.
	data, err := json.Marshal(payload)
	if err != nil {
		// Only strings and ints are marshalled; this cannot fail.
		panic("scene: marshal key: " + err.Error())
	}
	return Key(data), true
}

// Short returns a compact fingerprint of the key for logs and status lines.
func (k Key) Short() string {
	if k == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:6])
}
