package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EXILEWATCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load. An empty path skips
// the file and uses defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EXILEWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject credentials at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "EXILEWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EXILEWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EXILEWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EXILEWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EXILEWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EXILEWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EXILEWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EXILEWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EXILEWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EXILEWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "EXILEWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "EXILEWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EXILEWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EXILEWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EXILEWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EXILEWATCH_REDIS_MAX_RETRIES")
	setDuration(&cfg.Redis.CatalogTTL, "EXILEWATCH_REDIS_CATALOG_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EXILEWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EXILEWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EXILEWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "EXILEWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EXILEWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EXILEWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "EXILEWATCH_S3_FORCE_PATH_STYLE")

	// ── Transport ──
	setInt(&cfg.Transport.MaxRetries, "EXILEWATCH_TRANSPORT_MAX_RETRIES")
	setDuration(&cfg.Transport.BackoffFactor, "EXILEWATCH_TRANSPORT_BACKOFF_FACTOR")
	setDuration(&cfg.Transport.RequestTimeout, "EXILEWATCH_TRANSPORT_REQUEST_TIMEOUT")
	setInt(&cfg.Transport.BreakerThreshold, "EXILEWATCH_TRANSPORT_BREAKER_THRESHOLD")
	setDuration(&cfg.Transport.BreakerCooldown, "EXILEWATCH_TRANSPORT_BREAKER_COOLDOWN")
	setStr(&cfg.Transport.UserAgent, "EXILEWATCH_TRANSPORT_USER_AGENT")

	// ── Sources ──
	setStr(&cfg.Sources.NinjaBaseURL, "EXILEWATCH_SOURCES_NINJA_BASE_URL")
	setStr(&cfg.Sources.WikiLeaguesURL, "EXILEWATCH_SOURCES_WIKI_LEAGUES_URL")

	// ── Collector ──
	setStringSlice(&cfg.Collector.Leagues, "EXILEWATCH_COLLECTOR_LEAGUES")
	setInt(&cfg.Collector.RecentLeagues, "EXILEWATCH_COLLECTOR_RECENT_LEAGUES")
	setBool(&cfg.Collector.CollectHistorical, "EXILEWATCH_COLLECTOR_COLLECT_HISTORICAL")
	setStringSlice(&cfg.Collector.Categories, "EXILEWATCH_COLLECTOR_CATEGORIES")
	setDuration(&cfg.Collector.Interval, "EXILEWATCH_COLLECTOR_INTERVAL")

	// ── Backfill ──
	setBool(&cfg.Backfill.RunOnStart, "EXILEWATCH_BACKFILL_RUN_ON_START")
	setInt(&cfg.Backfill.LookbackDays, "EXILEWATCH_BACKFILL_LOOKBACK_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "EXILEWATCH_MODE")
	setStr(&cfg.LogLevel, "EXILEWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
