package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// CollectMode runs the live collection loop: an immediate cycle followed by
// one cycle per configured interval, until the context is cancelled.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting collect mode",
		slog.Duration("interval", a.cfg.Collector.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Backfill.RunOnStart {
		g.Go(func() error {
			a.runBackfill(ctx, deps)
			return nil
		})
	}

	g.Go(func() error {
		return deps.Collector.RunLoop(ctx, a.cfg.Collector.Interval.Duration)
	})

	return g.Wait()
}

// BackfillMode performs a single backfill pass over the target leagues and
// returns. Used for cron-style invocations and operator catch-up runs.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backfill mode",
		slog.Int("lookback_days", a.cfg.Backfill.LookbackDays),
	)

	leagues, err := a.backfillTargets(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: determine backfill targets: %w", err)
	}

	categories := a.cfg.ParsedCategories()
	for _, name := range leagues {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := deps.Backfiller.Run(ctx, name, categories, a.cfg.Backfill.LookbackDays); err != nil {
			a.logger.ErrorContext(ctx, "backfill run failed",
				slog.String("league", name),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// FullMode runs collection and, when configured, a startup backfill
// concurrently. This is the default daemon mode.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Backfill.RunOnStart {
		g.Go(func() error {
			a.runBackfill(ctx, deps)
			return nil
		})
	}

	g.Go(func() error {
		return deps.Collector.RunLoop(ctx, a.cfg.Collector.Interval.Duration)
	})

	return g.Wait()
}

// runBackfill executes one backfill pass over the target leagues, absorbing
// failures so a broken upstream never takes the daemon down.
func (a *App) runBackfill(ctx context.Context, deps *Dependencies) {
	leagues, err := a.backfillTargets(ctx, deps)
	if err != nil {
		a.logger.ErrorContext(ctx, "startup backfill skipped",
			slog.String("error", err.Error()),
		)
		return
	}

	categories := a.cfg.ParsedCategories()
	for _, name := range leagues {
		if ctx.Err() != nil {
			return
		}
		if _, err := deps.Backfiller.Run(ctx, name, categories, a.cfg.Backfill.LookbackDays); err != nil {
			a.logger.ErrorContext(ctx, "backfill run failed",
				slog.String("league", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// backfillTargets returns the league names to backfill: the explicitly
// configured list when present, otherwise the most recent leagues discovered
// from the wiki (synced into the registry first so statuses are current).
func (a *App) backfillTargets(ctx context.Context, deps *Dependencies) ([]string, error) {
	if len(a.cfg.Collector.Leagues) > 0 {
		return a.cfg.Collector.Leagues, nil
	}

	published, err := deps.Wiki.RecentLeagues(ctx, a.cfg.Collector.RecentLeagues)
	if err != nil {
		return nil, err
	}
	if err := deps.Registry.Sync(ctx, published); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(published))
	for _, info := range published {
		names = append(names, info.Name)
	}
	return names, nil
}
