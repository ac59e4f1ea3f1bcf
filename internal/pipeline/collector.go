// Package pipeline runs the recurring collection cycle: discover leagues,
// load one-shot historical dumps for expired leagues, and capture live price
// snapshots for every (league, category) pair.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/league"
	"github.com/exilewatch/exilewatch/internal/platform/poeninja"
)

// SnapshotClient provides live overviews and bulk dump downloads.
// *poeninja.Client satisfies it.
type SnapshotClient interface {
	CurrencyOverview(ctx context.Context, league string) ([]poeninja.CurrencyLine, []poeninja.CurrencyDetail, error)
	ItemOverview(ctx context.Context, league string, category domain.Category) ([]poeninja.ItemLine, error)
	FetchDump(ctx context.Context, league string) ([]byte, error)
}

// LeagueLister discovers current leagues from the published league listing.
type LeagueLister interface {
	RecentLeagues(ctx context.Context, n int) ([]domain.LeagueInfo, error)
}

// Config controls one collector's cycle behavior.
type Config struct {
	// Leagues pins collection to explicit league names. When empty the
	// collector discovers leagues through the LeagueLister.
	Leagues []string

	// RecentLeagues is how many discovered leagues to consider.
	RecentLeagues int

	// CollectHistorical enables one-shot dump loading for expired leagues
	// that have no stored data yet.
	CollectHistorical bool

	// Categories restricts which categories are collected; empty means all.
	Categories []domain.Category
}

// Collector captures live snapshots and loads historical dumps.
type Collector struct {
	cfg      Config
	ninja    SnapshotClient
	wiki     LeagueLister
	leagues  *league.Registry
	currency domain.CurrencyStore
	cards    domain.CardStore
	items    domain.ItemStore
	archiver domain.DumpArchiver // nil when cold storage is disabled
	logger   *slog.Logger
	now      func() time.Time
}

// NewCollector wires a Collector from its collaborators. archiver may be nil.
func NewCollector(
	cfg Config,
	ninja SnapshotClient,
	wiki LeagueLister,
	leagues *league.Registry,
	currency domain.CurrencyStore,
	cards domain.CardStore,
	items domain.ItemStore,
	archiver domain.DumpArchiver,
	logger *slog.Logger,
) *Collector {
	if len(cfg.Categories) == 0 {
		cfg.Categories = domain.Categories
	}
	if cfg.RecentLeagues <= 0 {
		cfg.RecentLeagues = 2
	}
	return &Collector{
		cfg:      cfg,
		ninja:    ninja,
		wiki:     wiki,
		leagues:  leagues,
		currency: currency,
		cards:    cards,
		items:    items,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "collector")),
		now:      time.Now,
	}
}

// Run executes a single collection cycle across all target leagues. League-
// and category-level failures are logged and skipped; Run fails only when no
// league set can be determined at all.
func (c *Collector) Run(ctx context.Context) error {
	start := c.now()
	targets, err := c.targetLeagues(ctx)
	if err != nil {
		return err
	}

	var written int64
	for _, lg := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lg.Status == domain.LeagueStatusExpired && c.cfg.CollectHistorical {
			n, err := c.loadHistorical(ctx, lg)
			if err != nil {
				c.logger.Error("historical load failed",
					slog.String("league", lg.Name),
					slog.String("error", err.Error()))
			}
			written += n
			continue
		}

		written += c.collectLive(ctx, lg)
	}

	c.logger.Info("collection cycle complete",
		slog.Int("leagues", len(targets)),
		slog.Int64("records_written", written),
		slog.Duration("elapsed", c.now().Sub(start)))
	return nil
}

// RunLoop runs collection cycles on a repeating interval until the context
// is cancelled.
func (c *Collector) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if err := c.Run(ctx); err != nil {
		c.logger.Error("collection cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := c.Run(ctx); err != nil {
				c.logger.Error("collection cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// targetLeagues resolves the configured league names, or discovers recent
// leagues and syncs their statuses into the registry.
func (c *Collector) targetLeagues(ctx context.Context) ([]domain.League, error) {
	if len(c.cfg.Leagues) > 0 {
		var out []domain.League
		for _, name := range c.cfg.Leagues {
			lg, err := c.leagues.Resolve(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("pipeline: resolve league %s: %w", name, err)
			}
			out = append(out, lg)
		}
		return out, nil
	}

	infos, err := c.wiki.RecentLeagues(ctx, c.cfg.RecentLeagues)
	if err != nil {
		return nil, fmt.Errorf("pipeline: discover leagues: %w", err)
	}
	if err := c.leagues.Sync(ctx, infos); err != nil {
		return nil, fmt.Errorf("pipeline: sync leagues: %w", err)
	}

	var out []domain.League
	for _, info := range infos {
		lg, err := c.leagues.Resolve(ctx, info.Name)
		if err != nil {
			return nil, fmt.Errorf("pipeline: resolve league %s: %w", info.Name, err)
		}
		out = append(out, lg)
	}
	return out, nil
}

// collectLive fetches and stores one live snapshot per configured category.
func (c *Collector) collectLive(ctx context.Context, lg domain.League) int64 {
	fetchedAt := c.now().UTC()
	var written int64

	for _, category := range c.cfg.Categories {
		n, err := c.collectCategory(ctx, lg, category, fetchedAt)
		if err != nil {
			c.logger.Error("snapshot failed",
				slog.String("league", lg.Name),
				slog.String("category", string(category)),
				slog.String("error", err.Error()))
			continue
		}
		c.logger.Info("snapshot stored",
			slog.String("league", lg.Name),
			slog.String("category", string(category)),
			slog.Int64("records", n))
		written += n
	}
	return written
}

func (c *Collector) collectCategory(ctx context.Context, lg domain.League, category domain.Category, fetchedAt time.Time) (int64, error) {
	switch category {
	case domain.CategoryCurrency:
		lines, _, err := c.ninja.CurrencyOverview(ctx, lg.Name)
		if err != nil {
			return 0, err
		}
		obs := make([]domain.CurrencyObservation, 0, len(lines))
		for _, l := range lines {
			obs = append(obs, l.ToObservation(lg.ID, fetchedAt))
		}
		return c.currency.InsertBatch(ctx, obs)

	case domain.CategoryCards:
		lines, err := c.ninja.ItemOverview(ctx, lg.Name, category)
		if err != nil {
			return 0, err
		}
		obs := make([]domain.CardObservation, 0, len(lines))
		for _, l := range lines {
			obs = append(obs, l.ToCardObservation(lg.ID, fetchedAt))
		}
		return c.cards.InsertBatch(ctx, obs)

	default:
		lines, err := c.ninja.ItemOverview(ctx, lg.Name, category)
		if err != nil {
			return 0, err
		}
		obs := make([]domain.ItemObservation, 0, len(lines))
		for _, l := range lines {
			obs = append(obs, l.ToItemObservation(lg.ID, fetchedAt))
		}
		return c.items.InsertBatch(ctx, obs)
	}
}

// loadHistorical performs the one-shot dump load for an expired league. The
// dump is fetched only when at least one category has no stored data; the
// raw archive is uploaded to cold storage when an archiver is configured.
func (c *Collector) loadHistorical(ctx context.Context, lg domain.League) (int64, error) {
	needed, err := c.categoriesWithoutData(ctx, lg)
	if err != nil {
		return 0, err
	}
	if len(needed) == 0 {
		return 0, nil
	}

	raw, err := c.ninja.FetchDump(ctx, lg.Name)
	if err != nil {
		return 0, err
	}
	fetchedAt := c.now().UTC()

	if c.archiver != nil {
		key, err := c.archiver.ArchiveDump(ctx, lg.Name, fetchedAt, raw)
		if err != nil {
			c.logger.Warn("dump archive upload failed",
				slog.String("league", lg.Name),
				slog.String("error", err.Error()))
		} else {
			c.logger.Info("dump archived",
				slog.String("league", lg.Name),
				slog.String("key", key))
		}
	}

	// Dump rows carry no time axis; they are stamped at midnight UTC of the
	// fetch day like any other backfilled observation.
	ts := time.Date(fetchedAt.Year(), fetchedAt.Month(), fetchedAt.Day(), 0, 0, 0, 0, time.UTC)

	var written int64
	for _, category := range needed {
		n, err := c.loadDumpCategory(ctx, lg, category, raw, ts)
		if err != nil {
			c.logger.Error("dump parse failed",
				slog.String("league", lg.Name),
				slog.String("category", string(category)),
				slog.String("error", err.Error()))
			continue
		}
		c.logger.Info("historical data loaded",
			slog.String("league", lg.Name),
			slog.String("category", string(category)),
			slog.Int64("records", n))
		written += n
	}
	return written, nil
}

func (c *Collector) categoriesWithoutData(ctx context.Context, lg domain.League) ([]domain.Category, error) {
	indexes := map[domain.Category]domain.ObservationIndex{
		domain.CategoryCurrency: c.currency,
		domain.CategoryCards:    c.cards,
		domain.CategoryItems:    c.items,
	}

	var needed []domain.Category
	for _, category := range c.cfg.Categories {
		has, err := indexes[category].HasData(ctx, lg.ID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: has data %s/%s: %w", lg.Name, category, err)
		}
		if !has {
			needed = append(needed, category)
		}
	}
	return needed, nil
}

func (c *Collector) loadDumpCategory(ctx context.Context, lg domain.League, category domain.Category, raw []byte, ts time.Time) (int64, error) {
	switch category {
	case domain.CategoryCurrency:
		obs, err := poeninja.ParseDumpCurrency(raw, lg.ID, ts)
		if err != nil {
			return 0, err
		}
		return c.currency.InsertBatch(ctx, obs)

	case domain.CategoryCards:
		obs, err := poeninja.ParseDumpCards(raw, lg.ID, ts)
		if err != nil {
			return 0, err
		}
		return c.cards.InsertBatch(ctx, obs)

	default:
		obs, err := poeninja.ParseDumpItems(raw, lg.ID, ts)
		if err != nil {
			return 0, err
		}
		return c.items.InsertBatch(ctx, obs)
	}
}
