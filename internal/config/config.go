// Package config defines the top-level configuration for the collector and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by EXILEWATCH_* environment
// variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Transport TransportConfig `toml:"transport"`
	Sources   SourcesConfig   `toml:"sources"`
	Collector CollectorConfig `toml:"collector"`
	Backfill  BackfillConfig  `toml:"backfill"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional catalog-cache connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	CatalogTTL duration `toml:"catalog_ttl"`
}

// S3Config holds the optional dump cold-storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// TransportConfig holds retry and circuit-breaker parameters for all
// upstream HTTP calls.
type TransportConfig struct {
	MaxRetries       int      `toml:"max_retries"`
	BackoffFactor    duration `toml:"backoff_factor"`
	RequestTimeout   duration `toml:"request_timeout"`
	BreakerThreshold int      `toml:"breaker_threshold"`
	BreakerCooldown  duration `toml:"breaker_cooldown"`
	UserAgent        string   `toml:"user_agent"`
}

// SourcesConfig holds the upstream base URLs.
type SourcesConfig struct {
	NinjaBaseURL   string `toml:"ninja_base_url"`
	WikiLeaguesURL string `toml:"wiki_leagues_url"`
}

// CollectorConfig holds the live collection cycle parameters.
type CollectorConfig struct {
	// Leagues pins collection to explicit league names; empty enables
	// discovery through the wiki league listing.
	Leagues           []string `toml:"leagues"`
	RecentLeagues     int      `toml:"recent_leagues"`
	CollectHistorical bool     `toml:"collect_historical"`
	Categories        []string `toml:"categories"`
	Interval          duration `toml:"interval"`
}

// BackfillConfig holds the gap-backfill parameters.
type BackfillConfig struct {
	RunOnStart   bool `toml:"run_on_start"`
	LookbackDays int  `toml:"lookback_days"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "exilewatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			CatalogTTL: duration{30 * time.Minute},
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "exilewatch-dumps",
			ForcePathStyle: true,
		},
		Transport: TransportConfig{
			MaxRetries:       3,
			BackoffFactor:    duration{time.Second},
			RequestTimeout:   duration{30 * time.Second},
			BreakerThreshold: 5,
			BreakerCooldown:  duration{60 * time.Second},
			UserAgent:        "exilewatch/1.0",
		},
		Sources: SourcesConfig{
			NinjaBaseURL:   "https://poe.ninja",
			WikiLeaguesURL: "https://www.poewiki.net/wiki/League",
		},
		Collector: CollectorConfig{
			RecentLeagues:     2,
			CollectHistorical: false,
			Interval:          duration{time.Hour},
		},
		Backfill: BackfillConfig{
			RunOnStart:   false,
			LookbackDays: 30,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"collect":  true,
	"backfill": true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: collect, backfill, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Transport
	if c.Transport.MaxRetries < 0 {
		errs = append(errs, "transport: max_retries must be >= 0")
	}
	if c.Transport.BackoffFactor.Duration <= 0 {
		errs = append(errs, "transport: backoff_factor must be positive")
	}
	if c.Transport.RequestTimeout.Duration <= 0 {
		errs = append(errs, "transport: request_timeout must be positive")
	}
	if c.Transport.BreakerThreshold < 1 {
		errs = append(errs, "transport: breaker_threshold must be >= 1")
	}
	if c.Transport.BreakerCooldown.Duration <= 0 {
		errs = append(errs, "transport: breaker_cooldown must be positive")
	}

	// Sources
	if c.Sources.NinjaBaseURL == "" {
		errs = append(errs, "sources: ninja_base_url must not be empty")
	}
	if c.Sources.WikiLeaguesURL == "" && len(c.Collector.Leagues) == 0 {
		errs = append(errs, "sources: wiki_leagues_url must be set when collector.leagues is empty")
	}

	// Collector
	if c.Collector.Interval.Duration <= 0 {
		errs = append(errs, "collector: interval must be positive")
	}
	if c.Collector.RecentLeagues < 1 {
		errs = append(errs, "collector: recent_leagues must be >= 1")
	}
	for _, cat := range c.Collector.Categories {
		if _, ok := domain.ParseCategory(cat); !ok {
			errs = append(errs, fmt.Sprintf("collector: unknown category %q (valid: currency, divination_cards, unique_items)", cat))
		}
	}

	// Backfill
	if c.Backfill.LookbackDays < 1 {
		errs = append(errs, "backfill: lookback_days must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParsedCategories converts the configured category names; an empty list
// means every category.
func (c *Config) ParsedCategories() []domain.Category {
	if len(c.Collector.Categories) == 0 {
		return domain.Categories
	}
	var out []domain.Category
	for _, s := range c.Collector.Categories {
		if cat, ok := domain.ParseCategory(s); ok {
			out = append(out, cat)
		}
	}
	return out
}
