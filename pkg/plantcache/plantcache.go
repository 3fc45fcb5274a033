// Package plantcache is the record-level entry point used by the rest of the
// application. It keeps a species record in the store and makes sure its care
// details are fresh whenever the record is looked up.
package plantcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/resolver"
	"github.com/Sternrassler/plantcare/pkg/store"
)

// Resolver resolves care details for one request.
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) care.Result
}

// Config holds facade configuration.
type Config struct {
	Store    store.Store
	Resolver Resolver

	// DefaultProvider is tried first when a record needs care details.
	DefaultProvider care.Source

	// StaleAfter is the freshness window (default care.StaleAfter).
	StaleAfter time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

// Facade finds or creates species records and keeps their care data current.
type Facade struct {
	store      store.Store
	resolver   Resolver
	provider   care.Source
	staleAfter time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a facade.
func New(cfg Config) (*Facade, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if !cfg.DefaultProvider.Valid() {
		cfg.DefaultProvider = care.DefaultProvider
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = care.StaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Facade{
		store:      cfg.Store,
		resolver:   cfg.Resolver,
		provider:   cfg.DefaultProvider,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
		logger:     cfg.Logger.With().Str("component", "plantcache").Logger(),
	}, nil
}

// FindOrCreate returns the record for name, creating it when absent and
// backfilling empty identity fields. Uncached or stale records are resolved
// synchronously before returning. A failed resolution still returns the
// record; it simply stays uncached or stale.
func (f *Facade) FindOrCreate(ctx context.Context, name string, identity care.Identity) (*care.Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, resolver.ErrInvalidName
	}

	rec, err := f.store.FindOrCreate(ctx, name, identity)
	if err != nil {
		return nil, fmt.Errorf("find or create %q: %w", name, err)
	}

	if !rec.NeedsRefresh(f.now(), f.staleAfter) {
		return rec, nil
	}
	return f.refresh(ctx, rec, f.provider)
}

// ForceRefresh clears the cache metadata of rec and resolves it again with
// provider tried first.
func (f *Facade) ForceRefresh(ctx context.Context, rec *care.Record, provider care.Source) (*care.Record, error) {
	if rec == nil {
		return nil, resolver.ErrInvalidName
	}
	if !provider.Valid() {
		provider = f.provider
	}

	if err := f.store.ClearCare(ctx, rec.ScientificName); err != nil {
		return nil, fmt.Errorf("clear care for %q: %w", rec.ScientificName, err)
	}
	return f.refresh(ctx, rec, provider)
}

// CareDetails returns the care attributes for name, resolving them first
// when needed.
func (f *Facade) CareDetails(ctx context.Context, name string, identity care.Identity) (*care.Details, error) {
	rec, err := f.FindOrCreate(ctx, name, identity)
	if err != nil {
		return nil, err
	}
	return rec.CareDetails(), nil
}

func (f *Facade) refresh(ctx context.Context, rec *care.Record, provider care.Source) (*care.Record, error) {
	id := rec.IdentityView()
	req := resolver.Request{
		ScientificName: rec.ScientificName,
		CommonName:     deref(id.CommonName),
		Family:         deref(id.Family),
		Provider:       provider,
		ForceRefresh:   true,
	}

	result := f.resolver.Resolve(ctx, req)
	if !result.Success {
		f.logger.Info().
			Str("scientific_name", rec.ScientificName).
			Str("provider", string(provider)).
			Str("message", result.Message).
			Msg("Care details unavailable, record left unchanged")
	}

	reloaded, err := f.store.Get(ctx, rec.ScientificName)
	if err != nil {
		return nil, fmt.Errorf("reload %q: %w", rec.ScientificName, err)
	}
	return reloaded, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
