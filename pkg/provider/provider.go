// Package provider defines the contract shared by external care providers.
package provider

import (
	"context"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// Provider fetches care details for one species from an external source.
// Any returned error is a failed attempt; callers never see a partial result.
type Provider interface {
	// Name identifies the provider as a care source.
	Name() care.Source

	// Fetch looks up care details for q.
	Fetch(ctx context.Context, q care.Query) (*care.Fetched, error)
}

// Set holds one provider per source.
type Set map[care.Source]Provider

// NewSet indexes providers by their source name.
func NewSet(providers ...Provider) Set {
	s := make(Set, len(providers))
	for _, p := range providers {
		if p != nil {
			s[p.Name()] = p
		}
	}
	return s
}
