package cache

import (
	"time"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// CacheEntry represents a cached resolution result.
type CacheEntry struct {
	// Result is the cached resolution outcome
	Result care.Result `json:"result"`

	// Expires is when the cache entry becomes invalid
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this result
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry wraps a result with an expiry ttl from now.
func NewEntry(result care.Result, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Result:   result,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
