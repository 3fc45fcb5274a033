package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// DefaultTTL is how long a resolution result stays in the short-term cache.
const DefaultTTL = 24 * time.Hour

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a byte-oriented key-value backend with per-entry TTL.
// Implementations must return ErrCacheMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Layer names the backend in metrics and logs.
	Layer() string
}

// Manager stores resolution results in a Store.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager creates a new cache manager on top of store.
// A non-positive ttl falls back to DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}
}

// TTL returns the default entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Layer returns the backend layer name.
func (m *Manager) Layer() string {
	return m.store.Layer()
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	layer := m.store.Layer()

	data, err := m.store.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.WithLabelValues(layer).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(layer, "get").Inc()
		return nil, fmt.Errorf("%s get: %w", layer, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(layer, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Backends expire passively; guard against clock skew between replicas
	if entry.IsExpired() {
		_ = m.store.Delete(ctx, key.String())
		CacheMisses.WithLabelValues(layer).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layer).Inc()
	return &entry, nil
}

// Put stores result under key with the manager's default TTL.
func (m *Manager) Put(ctx context.Context, key CacheKey, result care.Result) error {
	return m.PutTTL(ctx, key, result, m.ttl)
}

// PutTTL stores result under key with an explicit ttl.
func (m *Manager) PutTTL(ctx context.Context, key CacheKey, result care.Result, ttl time.Duration) error {
	return m.Set(ctx, key, NewEntry(result, ttl))
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// The entry will be automatically removed when it expires.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	layer := m.store.Layer()

	ttl := entry.TTL()
	if ttl <= 0 {
		// Already expired, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(layer, "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.store.Set(ctx, key.String(), data, ttl); err != nil {
		CacheErrors.WithLabelValues(layer, "set").Inc()
		return fmt.Errorf("%s set: %w", layer, err)
	}

	CacheWrites.WithLabelValues(layer).Inc()
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.store.Delete(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues(m.store.Layer(), "delete").Inc()
		return fmt.Errorf("%s del: %w", m.store.Layer(), err)
	}
	return nil
}

// Invalidate removes the entries for name under every provider preference.
func (m *Manager) Invalidate(ctx context.Context, name string) error {
	var errs []error
	for _, provider := range []care.Source{care.SourceStructured, care.SourceGenerative} {
		if err := m.Delete(ctx, CacheKey{ScientificName: name, Provider: provider}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
