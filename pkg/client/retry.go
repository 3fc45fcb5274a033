package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	providerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_retries_total",
		Help: "Total number of retry attempts by provider and error class",
	}, []string{"provider", "error_class"})

	providerRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantcare_provider_retry_backoff_seconds",
		Help:    "Backoff duration for retries by provider",
		Buckets: []float64{0.1, 0.3, 0.6, 1.2, 2.5, 5, 10},
	}, []string{"provider"})

	providerRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by provider and error class",
	}, []string{"provider", "error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int `mapstructure:"max_attempts"`

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `mapstructure:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`

	// Jitter is the relative randomization applied to each delay (0.2 = ±20%).
	// Zero keeps the schedule exact.
	Jitter float64 `mapstructure:"jitter"`
}

// DefaultRetryConfig returns the retry policy of the generative provider:
// two attempts, 300ms doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    300 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// NoRetry returns a policy with a single attempt.
func NoRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 1
	return cfg
}

// normalize fills zero values with defaults.
func (r RetryConfig) normalize() RetryConfig {
	def := DefaultRetryConfig()
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.InitialBackoff
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = r.InitialBackoff
	}
	if r.BackoffMultiplier < 1 {
		r.BackoffMultiplier = def.BackoffMultiplier
	}
	if r.Jitter < 0 {
		r.Jitter = 0
	}
	return r
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryWithBackoff executes fn with exponential backoff. Errors whose class
// is not retryable are returned immediately; exhausted retries wrap the last
// error with ErrRetryExhausted.
func retryWithBackoff(ctx context.Context, provider string, config RetryConfig, sleep sleepFunc, logger zerolog.Logger, fn func(attempt int) error) error {
	config = config.normalize()
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("provider", provider).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass := ClassOf(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		providerRetriesTotal.WithLabelValues(provider, string(errorClass)).Inc()

		delay := backoff
		if config.Jitter > 0 {
			delay = time.Duration(float64(backoff) * (1 - config.Jitter + rand.Float64()*2*config.Jitter))
		}
		providerRetryBackoffSeconds.WithLabelValues(provider).Observe(delay.Seconds())

		logger.Debug().
			Str("provider", provider).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, delay); err != nil {
			logger.Warn().
				Str("provider", provider).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if config.MaxAttempts == 1 {
		return lastErr
	}

	providerRetryExhaustedTotal.WithLabelValues(provider, string(ClassOf(lastErr))).Inc()
	logger.Warn().
		Str("provider", provider).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
