// Package resolver resolves care details for a species through the
// short-term cache, the persistent store and the external providers, in
// that order, and decides what gets persisted.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/plantcare/pkg/cache"
	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/provider"
	"github.com/Sternrassler/plantcare/pkg/store"
)

// DefaultSharedTimeout bounds a coalesced resolution.
const DefaultSharedTimeout = 2 * time.Minute

var (
	// ErrInvalidName is reported when the scientific name is empty.
	ErrInvalidName = errors.New("scientific name is required")

	// ErrAllProvidersExhausted is reported when no provider returned useful data.
	ErrAllProvidersExhausted = errors.New("care details not available from any provider")
)

// Request describes one resolution.
type Request struct {
	ScientificName string
	CommonName     string
	Family         string

	// Provider is tried first. Empty or unknown means the configured default.
	Provider care.Source

	// ForceRefresh skips the short-term cache and the stored record, even a
	// fresh one from the same source, and always persists a useful result.
	ForceRefresh bool
}

// Config holds the resolver configuration.
type Config struct {
	// Store is the persistent record store (required).
	Store store.Store

	// Cache is the short-term cache; nil disables it.
	Cache *cache.Manager

	// Providers by source (at least one).
	Providers provider.Set

	// DefaultProvider is tried first when a request names none
	// (default care.DefaultProvider).
	DefaultProvider care.Source

	// StaleAfter is the persisted freshness window (default care.StaleAfter).
	StaleAfter time.Duration

	// NegativeTTL caches terminal failures of non-forced calls. Zero disables.
	NegativeTTL time.Duration

	// DisableSingleFlight turns off coalescing of identical concurrent calls.
	DisableSingleFlight bool

	// SharedTimeout bounds a coalesced resolution, which runs detached from
	// any single caller's context (default DefaultSharedTimeout).
	SharedTimeout time.Duration

	Logger zerolog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Resolver implements the care resolution algorithm.
type Resolver struct {
	store     store.Store
	cache     *cache.Manager
	providers provider.Set
	config    Config
	group     singleflight.Group
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates a resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = care.StaleAfter
	}
	if !cfg.DefaultProvider.Valid() {
		cfg.DefaultProvider = care.DefaultProvider
	}
	if cfg.NegativeTTL < 0 {
		cfg.NegativeTTL = 0
	}
	if cfg.SharedTimeout <= 0 {
		cfg.SharedTimeout = DefaultSharedTimeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		store:     cfg.Store,
		cache:     cfg.Cache,
		providers: cfg.Providers,
		config:    cfg,
		now:       now,
		logger:    cfg.Logger.With().Str("component", "resolver").Logger(),
	}, nil
}

// Resolve returns care details for req. It never returns an error: every
// failure is reported as an unsuccessful result.
func (r *Resolver) Resolve(ctx context.Context, req Request) care.Result {
	start := time.Now()

	req.ScientificName = strings.TrimSpace(req.ScientificName)
	req.CommonName = strings.TrimSpace(req.CommonName)
	req.Family = strings.TrimSpace(req.Family)
	if !req.Provider.Valid() {
		req.Provider = r.config.DefaultProvider
	}

	if req.ScientificName == "" {
		r.record(outcomeInvalid, care.SourceNone, start)
		return care.NotFound(ErrInvalidName.Error())
	}

	if r.config.DisableSingleFlight {
		return r.resolve(ctx, req, start)
	}

	// The shared call outlives any one caller; each caller only waits on
	// its own context.
	key := fmt.Sprintf("%s\x00%s\x00%t", req.ScientificName, req.Provider, req.ForceRefresh)
	ch := r.group.DoChan(key, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.SharedTimeout)
		defer cancel()
		return r.resolve(sharedCtx, req, start), nil
	})

	select {
	case <-ctx.Done():
		r.record(outcomeCancelled, care.SourceNone, start)
		return care.NotFound(ctx.Err().Error())
	case res := <-ch:
		result := res.Val.(care.Result)
		if res.Shared {
			coalescedTotal.Inc()
			result.Data = result.Data.Clone()
		}
		return result
	}
}

func (r *Resolver) resolve(ctx context.Context, req Request, start time.Time) care.Result {
	name := req.ScientificName
	key := cache.CacheKey{ScientificName: name, Provider: req.Provider}
	logger := r.logger.With().
		Str("scientific_name", name).
		Str("provider", string(req.Provider)).
		Bool("force", req.ForceRefresh).
		Logger()

	// Step 1: Short-term cache
	if !req.ForceRefresh {
		if result, ok := r.cacheGet(ctx, key, logger); ok {
			logger.Debug().Str("source", string(result.Source)).Msg("Returning cached care details")
			r.record(outcomeCacheHit, result.Source, start)
			return result
		}
	}

	// Step 2: Persistent record
	rec, err := r.store.Get(ctx, name)
	priorKnown := true
	if err != nil {
		rec = nil
		if !errors.Is(err, store.ErrNotFound) {
			priorKnown = false
			logger.Warn().Err(err).Msg("Store lookup failed - falling through to providers")
		}
	}

	now := r.now()
	if !req.ForceRefresh && rec.HasCareData() && !rec.IsStale(now, r.config.StaleAfter) && rec.Source() == req.Provider {
		result := care.Found(rec.Source(), rec.CareDetails())
		r.cachePut(ctx, key, result, logger)
		logger.Debug().Msg("Returning stored care details")
		r.record(outcomeStoreHit, result.Source, start)
		return result
	}

	// Step 3: Providers in preference order
	src, fetched := r.fetch(ctx, req, logger)
	if fetched == nil {
		if err := ctx.Err(); err != nil {
			logger.Info().Err(err).Msg("Resolution abandoned before a provider answered")
			r.record(outcomeCancelled, care.SourceNone, start)
			return care.NotFound(err.Error())
		}
		result := care.NotFound(ErrAllProvidersExhausted.Error())
		if !req.ForceRefresh && r.config.NegativeTTL > 0 && r.cache != nil {
			if err := r.cache.PutTTL(ctx, key, result, r.config.NegativeTTL); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache negative result")
			}
		}
		logger.Info().Msg("No provider returned useful care details")
		r.record(outcomeExhausted, care.SourceNone, start)
		return result
	}

	details := fetched.Details
	result := care.Found(src, &details)

	// Step 4: Persist unless it would downgrade the stored source
	if r.shouldPersist(req, rec, priorKnown, src) {
		identity := mergeIdentity(req, fetched.Identity)
		if _, err := r.store.SaveCare(ctx, name, identity, &details, src, now); err != nil {
			persistenceTotal.WithLabelValues("error", string(src)).Inc()
			logger.Error().Err(err).Str("source", string(src)).Msg("Failed to persist care details")
		} else {
			persistenceTotal.WithLabelValues("written", string(src)).Inc()
		}
	} else {
		persistenceTotal.WithLabelValues("skipped", string(src)).Inc()
		logger.Info().
			Str("source", string(src)).
			Str("stored_source", string(rec.Source())).
			Msg("Skipping persistence to keep stored source")
	}

	r.cachePut(ctx, key, result, logger)
	r.record(outcomeFetched, src, start)
	return result
}

// fetch tries providers in order and returns the first useful result.
func (r *Resolver) fetch(ctx context.Context, req Request, logger zerolog.Logger) (care.Source, *care.Fetched) {
	q := care.Query{
		ScientificName: req.ScientificName,
		CommonName:     req.CommonName,
		Family:         req.Family,
	}

	for _, src := range req.Provider.Order() {
		p, ok := r.providers[src]
		if !ok {
			providerAttemptsTotal.WithLabelValues(string(src), "missing").Inc()
			continue
		}

		fetched, err := p.Fetch(ctx, q)
		if err != nil {
			providerAttemptsTotal.WithLabelValues(string(src), "error").Inc()
			logger.Warn().Err(err).Str("source", string(src)).Msg("Provider attempt failed")
			continue
		}
		if fetched == nil || !fetched.Details.IsUseful() {
			providerAttemptsTotal.WithLabelValues(string(src), "not_useful").Inc()
			logger.Info().Str("source", string(src)).Msg("Provider returned no useful data")
			continue
		}

		providerAttemptsTotal.WithLabelValues(string(src), "success").Inc()
		return src, fetched
	}
	return care.SourceNone, nil
}

// shouldPersist applies the no-downgrade rule.
func (r *Resolver) shouldPersist(req Request, rec *care.Record, priorKnown bool, src care.Source) bool {
	switch {
	case req.ForceRefresh:
		return true
	case !priorKnown:
		return false
	case rec == nil, !rec.HasCareData():
		return true
	default:
		return rec.Source() == src
	}
}

func (r *Resolver) cacheGet(ctx context.Context, key cache.CacheKey, logger zerolog.Logger) (care.Result, bool) {
	if r.cache == nil {
		return care.Result{}, false
	}
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Str("cache_layer", r.cache.Layer()).Msg("Cache get error")
		}
		return care.Result{}, false
	}
	return entry.Result, true
}

func (r *Resolver) cachePut(ctx context.Context, key cache.CacheKey, result care.Result, logger zerolog.Logger) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, key, result); err != nil {
		logger.Warn().Err(err).Str("cache_layer", r.cache.Layer()).Msg("Failed to cache result")
	}
}

func (r *Resolver) record(outcome string, source care.Source, start time.Time) {
	resolutionsTotal.WithLabelValues(outcome, string(source)).Inc()
	resolutionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// mergeIdentity prefers caller supplied identity and fills the rest from the
// provider.
func mergeIdentity(req Request, fetched care.Identity) care.Identity {
	id := care.Identity{
		CommonName: care.StringPtr(req.CommonName),
		Family:     care.StringPtr(req.Family),
		Genus:      fetched.Genus,
	}
	if id.CommonName == nil {
		id.CommonName = fetched.CommonName
	}
	if id.Family == nil {
		id.Family = fetched.Family
	}
	return id
}
