package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/exilewatch/exilewatch/internal/backfill"
	s3blob "github.com/exilewatch/exilewatch/internal/blob/s3"
	"github.com/exilewatch/exilewatch/internal/cache/redis"
	"github.com/exilewatch/exilewatch/internal/config"
	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/league"
	"github.com/exilewatch/exilewatch/internal/pipeline"
	"github.com/exilewatch/exilewatch/internal/platform/poeninja"
	"github.com/exilewatch/exilewatch/internal/platform/poewiki"
	"github.com/exilewatch/exilewatch/internal/store/postgres"
	"github.com/exilewatch/exilewatch/internal/transport"
)

// Dependencies bundles everything the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	LeagueStore   domain.LeagueStore
	CurrencyStore domain.CurrencyStore
	CardStore     domain.CardStore
	ItemStore     domain.ItemStore

	// Optional infrastructure
	CatalogCache domain.CatalogCache // nil unless redis is enabled
	DumpArchiver domain.DumpArchiver // nil unless s3 is enabled

	// Upstream clients
	Ninja *poeninja.Client
	Wiki  *poewiki.Client

	// Domain components
	Registry   *league.Registry
	Collector  *pipeline.Collector
	Backfiller *backfill.Backfiller
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.LeagueStore = postgres.NewLeagueStore(pool)
	deps.CurrencyStore = postgres.NewCurrencyStore(pool)
	deps.CardStore = postgres.NewCardStore(pool)
	deps.ItemStore = postgres.NewItemStore(pool)

	// --- Redis catalog cache (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.CatalogCache = redis.NewCatalogCache(redisClient)
	}

	// --- S3 dump cold storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.DumpArchiver = s3blob.NewDumpArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Upstream clients over the shared resilient transport ---
	tc := transport.New(transport.Config{
		MaxRetries:       cfg.Transport.MaxRetries,
		BackoffFactor:    cfg.Transport.BackoffFactor.Duration,
		RequestTimeout:   cfg.Transport.RequestTimeout.Duration,
		BreakerThreshold: cfg.Transport.BreakerThreshold,
		BreakerCooldown:  cfg.Transport.BreakerCooldown.Duration,
		UserAgent:        cfg.Transport.UserAgent,
	}, logger)

	deps.Ninja = poeninja.NewClient(cfg.Sources.NinjaBaseURL, tc, logger)
	deps.Wiki = poewiki.NewClient(cfg.Sources.WikiLeaguesURL, tc, logger)

	// --- Domain components ---
	deps.Registry = league.NewRegistry(deps.LeagueStore, logger)

	resolver := backfill.NewResolver(deps.Ninja, deps.CatalogCache, cfg.Redis.CatalogTTL.Duration, logger)
	deps.Backfiller = backfill.NewBackfiller(
		resolver,
		deps.Ninja,
		deps.Registry,
		deps.CurrencyStore,
		deps.CardStore,
		deps.ItemStore,
		logger,
	)

	deps.Collector = pipeline.NewCollector(
		pipeline.Config{
			Leagues:           cfg.Collector.Leagues,
			RecentLeagues:     cfg.Collector.RecentLeagues,
			CollectHistorical: cfg.Collector.CollectHistorical,
			Categories:        cfg.ParsedCategories(),
		},
		deps.Ninja,
		deps.Wiki,
		deps.Registry,
		deps.CurrencyStore,
		deps.CardStore,
		deps.ItemStore,
		deps.DumpArchiver,
		logger,
	)

	return deps, cleanup, nil
}
