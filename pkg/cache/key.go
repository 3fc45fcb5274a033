package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// KeyPrefix namespaces every cache key written by this package.
const KeyPrefix = "plantcare:care:"

// CacheKey identifies a cached resolution result.
type CacheKey struct {
	// ScientificName is the normalized (trimmed) scientific name
	ScientificName string

	// Provider is the preferred provider of the request
	Provider care.Source
}

// String generates a deterministic cache key string.
// Format: plantcare:care:<hex digest of name and provider>
//
// The digest keeps keys short and free of whitespace regardless of the
// species name.
func (k CacheKey) String() string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(k.ScientificName) + "\x00" + string(k.Provider)))
	return KeyPrefix + hex.EncodeToString(sum[:16])
}
