// Package care defines the plant care data model shared by the resolver,
// the providers and the persistent store.
package care

import (
	"fmt"
	"strings"
)

// Source identifies where a set of care details came from.
type Source string

const (
	// SourceStructured is the search-then-fetch attribute provider.
	SourceStructured Source = "structured"

	// SourceGenerative is the prompt-driven text generation provider.
	SourceGenerative Source = "generative"

	// SourceNone marks a resolution that produced no data.
	SourceNone Source = "none"
)

// DefaultProvider is the provider tried first when the caller has no preference.
const DefaultProvider = SourceGenerative

// Valid reports whether s names a real provider.
func (s Source) Valid() bool {
	return s == SourceStructured || s == SourceGenerative
}

// Other returns the provider that is not s.
func (s Source) Other() Source {
	if s == SourceStructured {
		return SourceGenerative
	}
	return SourceStructured
}

// Order returns the attempt order starting with s.
func (s Source) Order() []Source {
	if !s.Valid() {
		s = DefaultProvider
	}
	return []Source{s, s.Other()}
}

// String implements fmt.Stringer.
func (s Source) String() string {
	return string(s)
}

// ParseSource converts a provider name into a Source. An empty string maps
// to DefaultProvider. The legacy names "trefle" and "gemini" are accepted.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultProvider, nil
	case "structured", "trefle":
		return SourceStructured, nil
	case "generative", "gemini":
		return SourceGenerative, nil
	default:
		return "", fmt.Errorf("unknown care provider %q", name)
	}
}
