// Package client provides the outbound HTTP transport shared by the care
// providers: error classification, retry with backoff, cooldown gating and
// request metrics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/plantcare/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for provider requests.
var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_requests_total",
		Help: "Total provider requests by provider and status",
	}, []string{"provider", "status"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantcare_provider_request_duration_seconds",
		Help:    "Provider request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"provider"})

	providerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_provider_errors_total",
		Help: "Total provider errors by provider and class",
	}, []string{"provider", "class"})
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 4 << 20

// Config holds the client configuration.
type Config struct {
	// Provider names the upstream in logs, metrics and cooldown state.
	Provider string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout applies to each attempt when HTTPClient is nil.
	Timeout time.Duration

	// Retry is the per-call retry policy.
	Retry RetryConfig

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// Cooldown optionally gates calls after rate limiting.
	Cooldown *ratelimit.Tracker

	Logger zerolog.Logger
}

// Client performs JSON requests against one provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	sleep      sleepFunc
	logger     zerolog.Logger
}

// New creates a provider client.
func New(cfg Config) (*Client, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "plantcare/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		sleep:      sleepContext,
		logger:     cfg.Logger.With().Str("provider", cfg.Provider).Logger(),
	}, nil
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// PostJSON encodes payload, performs a POST and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	body, err := c.Do(ctx, http.MethodPost, path, query, data)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Do performs a request with cooldown gating, retry and error classification
// and returns the raw 2xx response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	provider := c.config.Provider

	// Step 1: Cooldown gate
	if c.config.Cooldown != nil && !c.config.Cooldown.ShouldAllowRequest(ctx, provider) {
		providerRequestsTotal.WithLabelValues(provider, "cooling_down").Inc()
		return nil, fmt.Errorf("%s: %w", provider, ErrProviderCoolingDown)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	// Step 2: Execute with retry
	var result []byte
	err := retryWithBackoff(ctx, provider, c.config.Retry, c.sleep, c.logger, func(attempt int) error {
		data, err := c.attempt(ctx, method, target, path, body)
		if err != nil {
			return err
		}
		result = data
		return nil
	})

	// Step 3: Trip the cooldown when the provider kept rate limiting us
	if err != nil && c.config.Cooldown != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.ErrorClass == ErrorClassRateLimit {
			if tripErr := c.config.Cooldown.Trip(ctx, provider, pe.RetryAfter, pe.Message); tripErr != nil {
				c.logger.Warn().Err(tripErr).Msg("Failed to record provider cooldown")
			}
		}
	}

	return result, err
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, method, target, path string, body []byte) ([]byte, error) {
	provider := c.config.Provider

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	providerRequestDuration.WithLabelValues(provider).Observe(time.Since(startTime).Seconds())

	if err != nil {
		providerErrorsTotal.WithLabelValues(provider, string(ErrorClassNetwork)).Inc()
		providerRequestsTotal.WithLabelValues(provider, "network_error").Inc()
		// The request URL may carry credentials; log the path only.
		c.logger.Warn().Str("path", path).Str("error_class", string(ErrorClassNetwork)).Msg("Provider request failed")

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctxErr)
		}
		return nil, &ProviderError{
			Provider:   provider,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        redactURLError(err),
		}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	providerRequestsTotal.WithLabelValues(provider, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := ClassifyStatus(resp.StatusCode)
		providerErrorsTotal.WithLabelValues(provider, string(errClass)).Inc()

		c.logger.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Provider request error")

		return nil, &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
			RetryAfter: ratelimit.ParseRetryAfter(resp.Header),
		}
	}

	if readErr != nil {
		providerErrorsTotal.WithLabelValues(provider, string(ErrorClassNetwork)).Inc()
		return nil, &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        readErr,
		}
	}

	return data, nil
}

// redactURLError drops the request URL (and its query credentials) from
// transport errors.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
