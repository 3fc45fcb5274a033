package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/plantcare/pkg/cache"
	"github.com/Sternrassler/plantcare/pkg/config"
	"github.com/Sternrassler/plantcare/pkg/logging"
	"github.com/Sternrassler/plantcare/pkg/plantcache"
	"github.com/Sternrassler/plantcare/pkg/provider"
	"github.com/Sternrassler/plantcare/pkg/provider/generative"
	"github.com/Sternrassler/plantcare/pkg/provider/structured"
	"github.com/Sternrassler/plantcare/pkg/ratelimit"
	"github.com/Sternrassler/plantcare/pkg/refresh"
	"github.com/Sternrassler/plantcare/pkg/resolver"
	"github.com/Sternrassler/plantcare/pkg/store"
)

// app holds the wired components shared by all commands.
type app struct {
	redis      *redis.Client
	store      *store.GormStore
	cache      *cache.Manager
	resolver   *resolver.Resolver
	facade     *plantcache.Facade
	dispatcher *refresh.Dispatcher
	logger     zerolog.Logger
}

// newApp connects the store and optional redis and builds the resolver
// stack. The dispatcher is created but not started.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{logger: logging.NewLogger("app")}

	var cacheStore cache.Store
	var tracker *ratelimit.Tracker
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect redis at %s: %w", cfg.Redis.Addr, err)
		}
		cacheStore = cache.NewRedisStore(a.redis)
		tracker = ratelimit.NewTracker(a.redis, logging.NewLogger("ratelimit"))
		a.logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	} else {
		cacheStore = cache.NewMemoryStore(cfg.Cache.CleanupInterval)
		tracker = ratelimit.NewMemoryTracker(logging.NewLogger("ratelimit"))
	}
	a.cache = cache.NewManager(cacheStore, cfg.Cache.TTL)

	st, err := store.Open(ctx, cfg.Store, logging.NewLogger("store"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st

	gen, err := generative.New(cfg.GenerativeProvider(), tracker, logging.NewLogger("generative"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("generative provider: %w", err)
	}
	str, err := structured.New(cfg.StructuredProvider(), tracker, logging.NewLogger("structured"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("structured provider: %w", err)
	}
	if cfg.Generative.APIKey == "" && cfg.Structured.Token == "" {
		a.logger.Warn().Msg("No provider credentials configured - only stored care details can be served")
	}

	a.resolver, err = resolver.New(resolver.Config{
		Store:               st,
		Cache:               a.cache,
		Providers:           provider.NewSet(gen, str),
		DefaultProvider:     cfg.Resolver.DefaultProvider,
		StaleAfter:          cfg.Resolver.StaleAfter,
		NegativeTTL:         cfg.Cache.NegativeTTL,
		DisableSingleFlight: !cfg.Resolver.SingleFlight,
		SharedTimeout:       cfg.Resolver.SharedTimeout,
		Logger:              logging.NewLogger("resolver"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.facade, err = plantcache.New(plantcache.Config{
		Store:           st,
		Resolver:        a.resolver,
		DefaultProvider: cfg.Resolver.DefaultProvider,
		StaleAfter:      cfg.Resolver.StaleAfter,
		Logger:          logging.NewLogger("plantcache"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	dcfg := cfg.Dispatcher()
	dcfg.Logger = logging.NewLogger("refresh")
	a.dispatcher = refresh.NewDispatcher(a.resolver, dcfg)

	return a, nil
}

// sweeper builds a sweeper feeding the app dispatcher.
func (a *app) sweeper(cfg *config.Config) *refresh.Sweeper {
	scfg := cfg.Sweeper()
	scfg.Logger = logging.NewLogger("sweeper")
	return refresh.NewSweeper(a.store, a.dispatcher, scfg)
}

// ready reports whether the store and redis respond.
func (a *app) ready(ctx context.Context) error {
	sqlDB, err := a.store.DB().DB()
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close stops the dispatcher and releases connections.
func (a *app) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
