// Package structured implements the care provider backed by a Trefle-style
// botanical database: a name search followed by a species detail fetch.
package structured

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/client"
	"github.com/Sternrassler/plantcare/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public Trefle API.
const DefaultBaseURL = "https://trefle.io/api/v1"

// Config holds configuration for the structured provider.
type Config struct {
	Token     string
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Retry     client.RetryConfig

	// HTTPClient overrides the transport client (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns defaults without credentials. Calls are not retried.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 15 * time.Second,
		Retry:   client.NoRetry(),
	}
}

// Provider fetches structured care attributes.
type Provider struct {
	client *client.Client
	config Config
	logger zerolog.Logger
}

// New creates a structured provider. A missing token is reported by Fetch.
func New(cfg Config, cooldown *ratelimit.Tracker, logger zerolog.Logger) (*Provider, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = def.Retry
	}

	c, err := client.New(client.Config{
		Provider:   string(care.SourceStructured),
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		Retry:      cfg.Retry,
		HTTPClient: cfg.HTTPClient,
		Cooldown:   cooldown,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("structured client: %w", err)
	}

	return &Provider{
		client: c,
		config: cfg,
		logger: logger.With().Str("provider", string(care.SourceStructured)).Logger(),
	}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() care.Source {
	return care.SourceStructured
}

type searchResponse struct {
	Data []searchHit `json:"data"`
}

type searchHit struct {
	ID             int    `json:"id"`
	Slug           string `json:"slug"`
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
}

type detailResponse struct {
	Data map[string]any `json:"data"`
}

// Fetch searches for q.ScientificName and maps the matching species detail.
func (p *Provider) Fetch(ctx context.Context, q care.Query) (*care.Fetched, error) {
	if p.config.Token == "" {
		p.logger.Warn().Msg("Structured API token not configured")
		return nil, fmt.Errorf("structured: %w", client.ErrNotConfigured)
	}

	name := strings.TrimSpace(q.ScientificName)

	var search searchResponse
	err := p.client.GetJSON(ctx, "/plants/search", url.Values{
		"q":     {name},
		"token": {p.config.Token},
	}, &search)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}

	hit, ok := pickHit(search.Data, name)
	if !ok {
		p.logger.Info().Str("scientific_name", name).Msg("No structured search results")
		return nil, fmt.Errorf("search %q: %w", name, client.ErrNoData)
	}
	if hit.Slug == "" {
		return nil, fmt.Errorf("search %q: result without slug: %w", name, client.ErrNoData)
	}

	var detail detailResponse
	err = p.client.GetJSON(ctx, "/plants/"+url.PathEscape(hit.Slug), url.Values{
		"token": {p.config.Token},
	}, &detail)
	if err != nil {
		return nil, fmt.Errorf("detail %q: %w: %w", hit.Slug, client.ErrNoData, err)
	}
	if len(detail.Data) == 0 {
		return nil, fmt.Errorf("detail %q: empty document: %w", hit.Slug, client.ErrNoData)
	}

	fetched := mapDetail(object(detail.Data))
	if fetched.Identity.CommonName == nil {
		fetched.Identity.CommonName = care.StringPtr(hit.CommonName)
	}

	p.logger.Info().
		Str("scientific_name", name).
		Str("slug", hit.Slug).
		Msg("Structured care details fetched")

	return &fetched, nil
}

// pickHit prefers an exact case-insensitive scientific name match and
// falls back to the first result.
func pickHit(hits []searchHit, name string) (searchHit, bool) {
	if len(hits) == 0 {
		return searchHit{}, false
	}
	for _, h := range hits {
		if strings.EqualFold(strings.TrimSpace(h.ScientificName), name) {
			return h, true
		}
	}
	return hits[0], true
}
