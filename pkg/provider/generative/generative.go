// Package generative implements the care provider backed by a Gemini-style
// generateContent API. The model is asked for a fixed set of free-text
// fields which are then sanitized onto the care schema.
package generative

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

const (
	// DefaultBaseURL is the public Generative Language API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.5-flash"
)

// Config holds configuration for the generative provider.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	UserAgent       string
	Retry           client.RetryConfig

	// HTTPClient overrides the transport client (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns the default generation settings without credentials.
func DefaultConfig() Config {
	return Config{
		Model:           DefaultModel,
		BaseURL:         DefaultBaseURL,
		Temperature:     0.4,
		MaxOutputTokens: 1024,
		Timeout:         30 * time.Second,
		Retry:           client.DefaultRetryConfig(),
	}
}

// Provider fetches generated care guidance.
type Provider struct {
	client *client.Client
	config Config
	logger zerolog.Logger
}

// New creates a generative provider. A missing API key is not an error here;
// Fetch reports client.ErrNotConfigured instead.
func New(cfg Config, cooldown *ratelimit.Tracker, logger zerolog.Logger) (*Provider, error) {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = def.Retry
	}

	c, err := client.New(client.Config{
		Provider:   string(care.SourceGenerative),
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		Retry:      cfg.Retry,
		HTTPClient: cfg.HTTPClient,
		Cooldown:   cooldown,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("generative client: %w", err)
	}

	return &Provider{
		client: c,
		config: cfg,
		logger: logger.With().Str("provider", string(care.SourceGenerative)).Logger(),
	}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() care.Source {
	return care.SourceGenerative
}

// Fetch asks the model for care guidance on q.ScientificName.
func (p *Provider) Fetch(ctx context.Context, q care.Query) (*care.Fetched, error) {
	if p.config.APIKey == "" {
		p.logger.Warn().Msg("Generative API key not configured")
		return nil, fmt.Errorf("generative: %w", client.ErrNotConfigured)
	}

	req := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: BuildPrompt(q)}}}},
		GenerationConfig: generationConfig{
			Temperature:      p.config.Temperature,
			MaxOutputTokens:  p.config.MaxOutputTokens,
			ResponseMimeType: "application/json",
		},
	}

	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(p.config.Model))
	query := url.Values{"key": {p.config.APIKey}}

	var resp generateContentResponse
	if err := p.client.PostJSON(ctx, path, query, req, &resp); err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw, err := parseCareText(resp.text())
	if err != nil {
		p.logger.Warn().Err(err).Str("scientific_name", q.ScientificName).Msg("Unusable generative response")
		return nil, err
	}

	details := Sanitize(raw)
	p.logger.Info().
		Str("scientific_name", q.ScientificName).
		Bool("has_watering_guide", details.WateringGuide != nil).
		Bool("has_sunlight_guide", details.SunlightGuide != nil).
		Bool("has_care_summary", details.CareSummary != nil).
		Msg("Generative care details fetched")

	return &care.Fetched{Details: details}, nil
}

// Request/Response types for the generateContent API

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      *content `json:"content"`
	FinishReason string   `json:"finishReason"`
}

// text returns the first part of the first candidate.
func (r generateContentResponse) text() string {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Candidates[0].Content.Parts[0].Text)
}
