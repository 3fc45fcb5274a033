// Package config loads plantcare settings from an optional YAML file and
// PLANTCARE_ environment variables. It is the only package that reads the
// environment; everything else receives its configuration in constructors.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/plantcare/pkg/cache"
	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/client"
	"github.com/Sternrassler/plantcare/pkg/logging"
	"github.com/Sternrassler/plantcare/pkg/provider/generative"
	"github.com/Sternrassler/plantcare/pkg/provider/structured"
	"github.com/Sternrassler/plantcare/pkg/refresh"
	"github.com/Sternrassler/plantcare/pkg/resolver"
	"github.com/Sternrassler/plantcare/pkg/store"
)

// EnvPrefix prefixes every environment override, e.g. PLANTCARE_LOG_LEVEL.
const EnvPrefix = "PLANTCARE"

// Config is the root configuration.
type Config struct {
	Store      store.Config     `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Structured StructuredConfig `mapstructure:"structured"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Refresh    RefreshConfig    `mapstructure:"refresh"`
	Log        logging.Config   `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

// RedisConfig configures the shared cache and cooldown backend. An empty
// address keeps both in process.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig configures the short-term cache.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	NegativeTTL     time.Duration `mapstructure:"negative_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// GenerativeConfig configures the generative provider.
type GenerativeConfig struct {
	APIKey          string             `mapstructure:"api_key"`
	Model           string             `mapstructure:"model"`
	BaseURL         string             `mapstructure:"base_url"`
	Temperature     float64            `mapstructure:"temperature"`
	MaxOutputTokens int                `mapstructure:"max_output_tokens"`
	Timeout         time.Duration      `mapstructure:"timeout"`
	Retry           client.RetryConfig `mapstructure:"retry"`
}

// StructuredConfig configures the structured provider.
type StructuredConfig struct {
	Token   string             `mapstructure:"token"`
	BaseURL string             `mapstructure:"base_url"`
	Timeout time.Duration      `mapstructure:"timeout"`
	Retry   client.RetryConfig `mapstructure:"retry"`
}

// ResolverConfig configures resolution.
type ResolverConfig struct {
	DefaultProvider care.Source   `mapstructure:"default_provider"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	SingleFlight    bool          `mapstructure:"single_flight"`
	SharedTimeout   time.Duration `mapstructure:"shared_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// RefreshConfig configures background refresh.
type RefreshConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	Provider       care.Source   `mapstructure:"provider"`
	SweepEnabled   bool          `mapstructure:"sweep_enabled"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`
}

// ServerConfig configures the operational HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration. path names a config file; when empty,
// plantcare.yaml is looked up in the working directory and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plantcare")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	st := store.DefaultConfig()
	v.SetDefault("store.driver", st.Driver)
	v.SetDefault("store.dsn", st.DSN)
	v.SetDefault("store.auto_migrate", st.AutoMigrate)
	v.SetDefault("store.max_open_conns", st.MaxOpenConns)
	v.SetDefault("store.debug", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.negative_ttl", time.Duration(0))
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	gen := generative.DefaultConfig()
	v.SetDefault("generative.api_key", "")
	v.SetDefault("generative.model", gen.Model)
	v.SetDefault("generative.base_url", gen.BaseURL)
	v.SetDefault("generative.temperature", gen.Temperature)
	v.SetDefault("generative.max_output_tokens", gen.MaxOutputTokens)
	v.SetDefault("generative.timeout", gen.Timeout)
	setRetryDefaults(v, "generative.retry", gen.Retry)

	str := structured.DefaultConfig()
	v.SetDefault("structured.token", "")
	v.SetDefault("structured.base_url", str.BaseURL)
	v.SetDefault("structured.timeout", str.Timeout)
	setRetryDefaults(v, "structured.retry", str.Retry)

	v.SetDefault("resolver.default_provider", string(care.DefaultProvider))
	v.SetDefault("resolver.stale_after", care.StaleAfter)
	v.SetDefault("resolver.single_flight", true)
	v.SetDefault("resolver.shared_timeout", resolver.DefaultSharedTimeout)
	v.SetDefault("resolver.user_agent", "plantcare/1.0")

	rf := refresh.DefaultConfig()
	sw := refresh.DefaultSweeperConfig()
	v.SetDefault("refresh.workers", rf.Workers)
	v.SetDefault("refresh.queue_size", rf.QueueSize)
	v.SetDefault("refresh.job_timeout", rf.JobTimeout)
	v.SetDefault("refresh.provider", string(rf.Provider))
	v.SetDefault("refresh.sweep_enabled", false)
	v.SetDefault("refresh.sweep_interval", sw.Interval)
	v.SetDefault("refresh.sweep_batch_size", sw.BatchSize)

	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
}

func setRetryDefaults(v *viper.Viper, prefix string, r client.RetryConfig) {
	v.SetDefault(prefix+".max_attempts", r.MaxAttempts)
	v.SetDefault(prefix+".initial_backoff", r.InitialBackoff)
	v.SetDefault(prefix+".max_backoff", r.MaxBackoff)
	v.SetDefault(prefix+".backoff_multiplier", r.BackoffMultiplier)
	v.SetDefault(prefix+".jitter", r.Jitter)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Store.Driver {
	case store.DriverSQLite, store.DriverMySQL:
	default:
		add("store.driver: unsupported driver %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		add("store.dsn: required")
	}

	if c.Cache.TTL <= 0 {
		add("cache.ttl: must be positive")
	}
	if c.Cache.NegativeTTL < 0 {
		add("cache.negative_ttl: must not be negative")
	}

	if c.Generative.Temperature < 0 || c.Generative.Temperature > 2 {
		add("generative.temperature: %v outside [0, 2]", c.Generative.Temperature)
	}
	if c.Generative.MaxOutputTokens <= 0 {
		add("generative.max_output_tokens: must be positive")
	}
	validateRetry("generative.retry", c.Generative.Retry, add)
	validateRetry("structured.retry", c.Structured.Retry, add)

	if !c.Resolver.DefaultProvider.Valid() {
		add("resolver.default_provider: unknown provider %q", c.Resolver.DefaultProvider)
	}
	if c.Resolver.StaleAfter <= 0 {
		add("resolver.stale_after: must be positive")
	}
	if c.Resolver.SharedTimeout <= 0 {
		add("resolver.shared_timeout: must be positive")
	}
	if !c.Refresh.Provider.Valid() {
		add("refresh.provider: unknown provider %q", c.Refresh.Provider)
	}
	if c.Refresh.Workers <= 0 {
		add("refresh.workers: must be positive")
	}

	if _, err := logging.ParseLevel(string(c.Log.Level)); err != nil {
		add("log.level: %w", err)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr: required")
	}

	return errors.Join(errs...)
}

func validateRetry(prefix string, r client.RetryConfig, add func(string, ...any)) {
	if r.MaxAttempts < 1 {
		add("%s.max_attempts: must be at least 1", prefix)
	}
	if r.InitialBackoff < 0 || r.MaxBackoff < 0 {
		add("%s: backoff must not be negative", prefix)
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		add("%s.jitter: %v outside [0, 1]", prefix, r.Jitter)
	}
}

// GenerativeProvider returns the generative provider configuration.
func (c *Config) GenerativeProvider() generative.Config {
	return generative.Config{
		APIKey:          c.Generative.APIKey,
		Model:           c.Generative.Model,
		BaseURL:         c.Generative.BaseURL,
		Temperature:     c.Generative.Temperature,
		MaxOutputTokens: c.Generative.MaxOutputTokens,
		Timeout:         c.Generative.Timeout,
		UserAgent:       c.Resolver.UserAgent,
		Retry:           c.Generative.Retry,
	}
}

// StructuredProvider returns the structured provider configuration.
func (c *Config) StructuredProvider() structured.Config {
	return structured.Config{
		Token:     c.Structured.Token,
		BaseURL:   c.Structured.BaseURL,
		Timeout:   c.Structured.Timeout,
		UserAgent: c.Resolver.UserAgent,
		Retry:     c.Structured.Retry,
	}
}

// Dispatcher returns the refresh dispatcher configuration.
func (c *Config) Dispatcher() refresh.Config {
	return refresh.Config{
		Workers:    c.Refresh.Workers,
		QueueSize:  c.Refresh.QueueSize,
		JobTimeout: c.Refresh.JobTimeout,
		Provider:   c.Refresh.Provider,
	}
}

// Sweeper returns the sweeper configuration.
func (c *Config) Sweeper() refresh.SweeperConfig {
	return refresh.SweeperConfig{
		Interval:   c.Refresh.SweepInterval,
		BatchSize:  c.Refresh.SweepBatchSize,
		StaleAfter: c.Resolver.StaleAfter,
	}
}
