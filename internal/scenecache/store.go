package scenecache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// store holds finished scene images. Callers serialize access.
type store interface {
	get(key scene.Key) (string, bool)
	add(key scene.Key, image string)
	len() int
}

// mapStore never evicts; it grows for the life of the process.
type mapStore map[scene.Key]string

func (m mapStore) get(key scene.Key) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore) add(key scene.Key, image string) {
	m[key] = image
}

func (m mapStore) len() int {
	return len(m)
}

// lruStore keeps the most recently used scenes up to a fixed capacity.
type lruStore struct {
	cache *lru.Cache[scene.Key, string]
}

func newLRUStore(capacity int, onEvict func(scene.Key)) (*lruStore, error) {
	cache, err := lru.NewWithEvict(capacity, func(key scene.Key, _ string) {
		if onEvict != nil {
			onEvict(key)
		}
	})
	if err != nil {
		return nil, err
	}
	return &lruStore{cache: cache}, nil
}

func (s *lruStore) get(key scene.Key) (string, bool) {
	return s.cache.Get(key)
}

func (s *lruStore) add(key scene.Key, image string) {
	s.cache.Add(key, image)
}

func (s *lruStore) len() int {
	return s.cache.Len()
}
