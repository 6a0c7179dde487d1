// Package assets handles octree node file access and caching for the runtime loader.
package assets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// Store reads node files from one octree folder.
type Store[P any] struct {
	dir    string
	acc    points.Accessor[P]
	counts *Cache[uuid.UUID, int]
}

// NewStore creates a store for the octree folder dir.
func NewStore[P any](dir string, acc points.Accessor[P]) *Store[P] {
	return &Store[P]{
		dir:    dir,
		acc:    acc,
		counts: NewCache[uuid.UUID, int](),
	}
}

// Dir returns the octree folder.
func (s *Store[P]) Dir() string {
	return s.dir
}

// Path returns the node file path of guid.
func (s *Store[P]) Path(guid uuid.UUID) string {
	return oocfile.NodePath(s.dir, guid)
}

// PointCount returns the number of points stored for guid, reading only the
// node file header. Results are cached. An octant without a node file has no
// points; the returned error then wraps oocfile.ErrMissingResource.
func (s *Store[P]) PointCount(guid uuid.UUID) (int, error) {
	if n, ok := s.counts.Get(guid); ok {
		return n, nil
	}

	n, err := oocfile.ProbePointCount(s.dir, guid)
	if err != nil {
		if errors.Is(err, oocfile.ErrMissingResource) {
			s.counts.Set(guid, 0)
		}
		return 0, fmt.Errorf("probing %s: %w", guid, err)
	}

	s.counts.Set(guid, n)
	return n, nil
}

// Points reads all points stored for guid.
func (s *Store[P]) Points(guid uuid.UUID) ([]P, error) {
	pts, err := oocfile.ReadNode(s.dir, guid, s.acc)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", guid, err)
	}
	s.counts.Set(guid, len(pts))
	return pts, nil
}

// Stats returns the probe cache statistics.
func (s *Store[P]) Stats() (hits, misses int) {
	return s.counts.Stats()
}

// Close drops cached probe results.
func (s *Store[P]) Close() {
	s.counts.Clear()
}

// Cache is a simple in-memory cache.
type Cache[K comparable, V any] struct {
	data map[K]V
	mu   sync.RWMutex

	// Stats
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a new cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves an item from cache.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.data[key]
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return v, ok
}

// Set stores an item in cache.
func (c *Cache[K, V]) Set(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

// Delete removes an item.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of cached items.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]V)
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() (hits, misses int) {
	return int(c.hits.Load()), int(c.misses.Load())
}
