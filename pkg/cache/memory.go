package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LayerMemory is the metrics label of the in-process backend.
const LayerMemory = "memory"

// MemoryStore is an in-process Store for single-instance deployments and
// tests. Values are copied on the way in and out.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an in-process store that sweeps expired entries
// every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, ErrInvalidEntry
	}
	return append([]byte(nil), data...), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Layer implements Store.
func (s *MemoryStore) Layer() string {
	return LayerMemory
}

// Len returns the number of stored items, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
