// Package cache provides the short-term result cache for care resolutions.
//
// The cache sits in front of the persistent store and the external
// providers. It holds complete resolution results for a fixed TTL and
// expires them passively:
//
// - Keys are derived from (scientific name, preferred provider)
// - Values are JSON-encoded results, so repeated reads are byte-identical
// - Redis backend for deployments with several replicas
// - In-process backend (go-cache) for single-binary and test setups
// - Prometheus metrics per backend layer
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(cache.NewRedisStore(redisClient), cache.DefaultTTL)
//
//	key := cache.CacheKey{
//		ScientificName: "Hibiscus rosa-sinensis",
//		Provider:       care.SourceGenerative,
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// resolve and store
//	}
//
// # Metrics
//
//   - plantcare_cache_hits_total{layer} - Cache hits
//   - plantcare_cache_misses_total{layer} - Cache misses
//   - plantcare_cache_writes_total{layer} - Cache writes
//   - plantcare_cache_errors_total{layer,operation} - Cache operation errors
//
// The short-term TTL is independent of the persistent staleness window; the
// cache is only a fast window nested inside it and never extends it.
package cache
