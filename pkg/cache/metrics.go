package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis, memory)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_cache_hits_total",
			Help: "Total number of short-term cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_cache_misses_total",
			Help: "Total number of short-term cache misses",
		},
		[]string{"layer"},
	)

	// CacheWrites tracks successful cache writes by layer
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_cache_writes_total",
			Help: "Total number of short-term cache writes",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"layer", "operation"}, // "get", "set", "delete"
	)
)
