// Package ratelimit gates outbound provider calls after a provider has
// signalled rate limiting. The cooldown state is shared across resolver
// instances through Redis (or kept in-process for single-instance setups)
// so one replica hitting a quota protects the others.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RedisKeyPrefix namespaces provider cooldown keys.
const RedisKeyPrefix = "plantcare:ratelimit:"

const (
	// DefaultCooldown applies when the provider gives no Retry-After hint.
	DefaultCooldown = 60 * time.Second

	// MaxCooldown caps provider supplied hints.
	MaxCooldown = 15 * time.Minute
)

// Cooldown represents a provider that asked us to back off.
type Cooldown struct {
	// Provider is the provider name (structured, generative).
	Provider string `json:"provider"`

	// Until is when requests may resume.
	Until time.Time `json:"until"`

	// Reason is a short human readable cause, usually the HTTP status.
	Reason string `json:"reason"`

	// TrippedAt is when the cooldown was recorded.
	TrippedAt time.Time `json:"tripped_at"`
}

// Active returns true while the cooldown has not elapsed.
func (c *Cooldown) Active() bool {
	return c != nil && time.Now().Before(c.Until)
}

// Remaining returns the duration until requests may resume.
// Returns 0 if the cooldown already passed.
func (c *Cooldown) Remaining() time.Duration {
	if c == nil {
		return 0
	}
	d := time.Until(c.Until)
	if d < 0 {
		return 0
	}
	return d
}

// key returns the shared state key for provider.
func key(provider string) string {
	return RedisKeyPrefix + provider
}

// ParseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. It returns 0 when the header is absent or unparsable.
func ParseRetryAfter(headers http.Header) time.Duration {
	if headers == nil {
		return 0
	}
	v := strings.TrimSpace(headers.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// clampCooldown applies the default and maximum bounds.
func clampCooldown(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultCooldown
	}
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}
