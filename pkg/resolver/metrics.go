package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for care resolution.
var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_resolutions_total",
		Help: "Total care resolutions by outcome and source",
	}, []string{"outcome", "source"})

	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantcare_resolution_duration_seconds",
		Help:    "Care resolution duration in seconds by outcome",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})

	providerAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_attempts_total",
		Help: "Total provider attempts during resolution by provider and result",
	}, []string{"provider", "result"})

	persistenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_persistence_total",
		Help: "Persistence decisions after a successful fetch (written, skipped, error)",
	}, []string{"action", "source"})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plantcare_resolutions_coalesced_total",
		Help: "Total resolutions served by a concurrent identical resolution",
	})
)

// Resolution outcomes.
const (
	outcomeInvalid   = "invalid"
	outcomeCacheHit  = "cache_hit"
	outcomeStoreHit  = "store_hit"
	outcomeFetched   = "fetched"
	outcomeExhausted = "exhausted"
	outcomeCancelled = "cancelled"
)
