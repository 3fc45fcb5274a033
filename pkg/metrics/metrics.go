// Package metrics exposes the Prometheus registry used by plantcare.
// All metrics are defined in their respective packages (cache, client,
// ratelimit, resolver, store, refresh) to maintain modularity and avoid
// circular dependencies.
//
// This package provides the HTTP handler and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Resolution Metrics (pkg/resolver):
//   - plantcare_resolutions_total{outcome, source} (Counter): outcome is
//     invalid, cache_hit, store_hit, fetched or exhausted
//   - plantcare_resolution_duration_seconds{outcome} (Histogram)
//   - plantcare_provider_attempts_total{provider, result} (Counter): result is
//     success, error, not_useful or missing
//   - plantcare_persistence_total{action, source} (Counter): action is
//     written, skipped or error
//   - plantcare_resolutions_coalesced_total (Counter)
//
// Cache Metrics (pkg/cache):
//   - plantcare_cache_hits_total{layer} (Counter)
//   - plantcare_cache_misses_total{layer} (Counter)
//   - plantcare_cache_writes_total{layer} (Counter)
//   - plantcare_cache_errors_total{layer, operation} (Counter)
//
// Store Metrics (pkg/store):
//   - plantcare_store_operations_total{operation, status} (Counter)
//   - plantcare_store_operation_duration_seconds{operation} (Histogram)
//
// Request Metrics (pkg/client):
//   - plantcare_provider_requests_total{provider, status} (Counter)
//   - plantcare_provider_request_duration_seconds{provider} (Histogram)
//   - plantcare_provider_errors_total{provider, class} (Counter)
//
// Retry Metrics (pkg/client):
//   - plantcare_provider_retries_total{provider, error_class} (Counter)
//   - plantcare_provider_retry_backoff_seconds{provider} (Histogram)
//   - plantcare_provider_retry_exhausted_total{provider, error_class} (Counter)
//
// Cooldown Metrics (pkg/ratelimit):
//   - plantcare_provider_cooldowns_total{provider} (Counter)
//   - plantcare_provider_blocked_total{provider} (Counter)
//
// Refresh Metrics (pkg/refresh):
//   - plantcare_refresh_jobs_total{result} (Counter)
//   - plantcare_refresh_job_duration_seconds (Histogram)
//   - plantcare_refresh_queue_depth (Gauge)
//   - plantcare_refresh_sweep_enqueued_total (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(plantcare_cache_hits_total[5m])) /
//   (sum(rate(plantcare_cache_hits_total[5m])) + sum(rate(plantcare_cache_misses_total[5m])))
//
//   # Share of resolutions that needed a provider
//   sum(rate(plantcare_resolutions_total{outcome="fetched"}[5m])) /
//   sum(rate(plantcare_resolutions_total[5m]))
//
//   # Fallbacks to the second provider
//   rate(plantcare_provider_attempts_total{result!="success"}[5m])
//
//   # P95 Provider Latency
//   histogram_quantile(0.95, rate(plantcare_provider_request_duration_seconds_bucket[5m]))
