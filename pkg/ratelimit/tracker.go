package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for provider cooldowns.
var (
	providerCooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_cooldowns_total",
		Help: "Total number of provider cooldowns recorded after rate limiting",
	}, []string{"provider"})

	providerBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_blocked_total",
		Help: "Total number of provider calls skipped because of an active cooldown",
	}, []string{"provider"})
)

// backend persists cooldown state with expiry.
type backend interface {
	load(ctx context.Context, key string) ([]byte, error)
	save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	clear(ctx context.Context, key string) error
}

var errNoState = errors.New("no cooldown state")

// Tracker records provider cooldowns and gates requests.
type Tracker struct {
	backend backend
	logger  zerolog.Logger
}

// NewTracker creates a tracker sharing state through Redis.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Tracker{
		backend: &redisBackend{redis: redisClient},
		logger:  logger,
	}
}

// NewMemoryTracker creates a tracker with in-process state.
func NewMemoryTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		backend: &memoryBackend{cache: gocache.New(gocache.NoExpiration, time.Minute)},
		logger:  logger,
	}
}

// GetState returns the cooldown for provider, or nil when none is active.
func (t *Tracker) GetState(ctx context.Context, provider string) (*Cooldown, error) {
	data, err := t.backend.load(ctx, key(provider))
	if err != nil {
		if errors.Is(err, errNoState) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cooldown: %w", err)
	}

	var c Cooldown
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse cooldown: %w", err)
	}
	if !c.Active() {
		return nil, nil
	}
	return &c, nil
}

// Trip records a cooldown for provider lasting retryAfter (bounded by
// DefaultCooldown and MaxCooldown).
func (t *Tracker) Trip(ctx context.Context, provider string, retryAfter time.Duration, reason string) error {
	d := clampCooldown(retryAfter)
	now := time.Now()
	c := Cooldown{
		Provider:  provider,
		Until:     now.Add(d),
		Reason:    reason,
		TrippedAt: now,
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cooldown: %w", err)
	}
	if err := t.backend.save(ctx, key(provider), data, d); err != nil {
		return fmt.Errorf("store cooldown: %w", err)
	}

	providerCooldownsTotal.WithLabelValues(provider).Inc()
	t.logger.Warn().
		Str("provider", provider).
		Dur("cooldown", d).
		Str("reason", reason).
		Msg("Provider rate limited - cooling down")

	return nil
}

// Reset clears any cooldown for provider.
func (t *Tracker) Reset(ctx context.Context, provider string) error {
	return t.backend.clear(ctx, key(provider))
}

// ShouldAllowRequest reports whether provider may be called now.
// State read errors allow the request; the gate is advisory.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, provider string) bool {
	c, err := t.GetState(ctx, provider)
	if err != nil {
		t.logger.Warn().Err(err).Str("provider", provider).Msg("Cooldown check failed - allowing request")
		return true
	}
	if c == nil {
		return true
	}

	providerBlockedTotal.WithLabelValues(provider).Inc()
	t.logger.Debug().
		Str("provider", provider).
		Dur("remaining", c.Remaining()).
		Msg("Provider cooling down - skipping request")
	return false
}

type redisBackend struct {
	redis *redis.Client
}

func (b *redisBackend) load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNoState
	}
	return data, err
}

func (b *redisBackend) save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.redis.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) clear(ctx context.Context, key string) error {
	return b.redis.Del(ctx, key).Err()
}

type memoryBackend struct {
	cache *gocache.Cache
}

func (b *memoryBackend) load(_ context.Context, key string) ([]byte, error) {
	v, ok := b.cache.Get(key)
	if !ok {
		return nil, errNoState
	}
	data, _ := v.([]byte)
	return data, nil
}

func (b *memoryBackend) save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.cache.Set(key, value, ttl)
	return nil
}

func (b *memoryBackend) clear(_ context.Context, key string) error {
	b.cache.Delete(key)
	return nil
}
