package backfill

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/league"
	"github.com/exilewatch/exilewatch/internal/platform/poeninja"
)

// HistoryClient fetches per-entity history series. *poeninja.Client
// satisfies it.
type HistoryClient interface {
	CurrencyHistory(ctx context.Context, league string, upstreamID int) (poeninja.CurrencyHistory, error)
	ItemHistory(ctx context.Context, league string, category domain.Category, upstreamID int) ([]poeninja.HistoryEntry, error)
}

// CategoryResult summarizes one category of a backfill run.
type CategoryResult struct {
	Category          domain.Category
	EntitiesProcessed int
	RecordsWritten    int64
	Err               error
}

// RunResult summarizes a whole backfill run.
type RunResult struct {
	RunID      string
	League     domain.League
	Categories []CategoryResult
}

// Backfiller orchestrates a run: resolve league, then per category resolve
// entities, detect gaps, fetch history, reconcile, and write. A category's
// failure is logged and the run proceeds to the next category; only failing
// to resolve the league aborts the run.
type Backfiller struct {
	resolver *Resolver
	history  HistoryClient
	leagues  *league.Registry
	currency domain.CurrencyStore
	cards    domain.CardStore
	items    domain.ItemStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewBackfiller wires a Backfiller from its collaborators.
func NewBackfiller(
	resolver *Resolver,
	history HistoryClient,
	leagues *league.Registry,
	currency domain.CurrencyStore,
	cards domain.CardStore,
	items domain.ItemStore,
	logger *slog.Logger,
) *Backfiller {
	return &Backfiller{
		resolver: resolver,
		history:  history,
		leagues:  leagues,
		currency: currency,
		cards:    cards,
		items:    items,
		logger:   logger.With(slog.String("component", "backfiller")),
		now:      time.Now,
	}
}

// Run backfills the named league across the given categories, looking back
// lookbackDays calendar days. Entity- and category-level failures are
// absorbed into the result; the returned error is non-nil only when the
// league itself cannot be resolved.
func (b *Backfiller) Run(ctx context.Context, leagueName string, categories []domain.Category, lookbackDays int) (RunResult, error) {
	runID := uuid.NewString()
	logger := b.logger.With(
		slog.String("run_id", runID),
		slog.String("league", leagueName))

	lg, err := b.leagues.Resolve(ctx, leagueName)
	if err != nil {
		return RunResult{RunID: runID}, err
	}

	result := RunResult{RunID: runID, League: lg}
	start := b.now()
	logger.Info("backfill run started",
		slog.Int("lookback_days", lookbackDays),
		slog.Int("categories", len(categories)))

	for _, category := range categories {
		cr := b.runCategory(ctx, logger, lg, category, lookbackDays)
		result.Categories = append(result.Categories, cr)
		if cr.Err != nil {
			logger.Error("category backfill failed",
				slog.String("category", string(category)),
				slog.String("error", cr.Err.Error()))
			continue
		}
		logger.Info("category backfill done",
			slog.String("category", string(category)),
			slog.Int("entities_processed", cr.EntitiesProcessed),
			slog.Int64("records_written", cr.RecordsWritten))
	}

	logger.Info("backfill run finished",
		slog.Duration("elapsed", b.now().Sub(start)))
	return result, nil
}

func (b *Backfiller) runCategory(ctx context.Context, logger *slog.Logger, lg domain.League, category domain.Category, lookbackDays int) CategoryResult {
	cr := CategoryResult{Category: category}

	switch category {
	case domain.CategoryCurrency:
		cr.EntitiesProcessed, cr.RecordsWritten, cr.Err = b.backfillCurrency(ctx, logger, lg, lookbackDays)
	case domain.CategoryCards:
		cr.EntitiesProcessed, cr.RecordsWritten, cr.Err = backfillSingleSided(ctx, b, logger, lg, category, lookbackDays, b.cards, reconcileCard)
	case domain.CategoryItems:
		cr.EntitiesProcessed, cr.RecordsWritten, cr.Err = backfillSingleSided(ctx, b, logger, lg, category, lookbackDays, b.items, reconcileItem)
	}
	return cr
}

func (b *Backfiller) backfillCurrency(ctx context.Context, logger *slog.Logger, lg domain.League, lookbackDays int) (int, int64, error) {
	entities, err := b.resolver.Resolve(ctx, lg, domain.CategoryCurrency, b.currency)
	if err != nil {
		return 0, 0, err
	}

	today := b.now()
	processed := 0
	var written int64
	for name, id := range entities {
		if err := ctx.Err(); err != nil {
			return processed, written, err
		}

		stored, err := b.currency.DistinctDates(ctx, lg.ID, name)
		if err != nil {
			logger.Warn("stored dates query failed",
				slog.String("entity", name),
				slog.String("error", err.Error()))
			continue
		}
		missing := MissingDates(stored, today, lookbackDays)
		if len(missing) == 0 {
			continue
		}

		hist, err := b.history.CurrencyHistory(ctx, lg.Name, id)
		if err != nil {
			logger.Warn("history fetch failed",
				slog.String("entity", name),
				slog.String("error", err.Error()))
			continue
		}
		payByDay := indexByDay(hist.Pay, today)
		receiveByDay := indexByDay(hist.Receive, today)

		var obs []domain.CurrencyObservation
		for _, day := range missing {
			var pay, receive *poeninja.HistoryEntry
			if e, ok := payByDay[day]; ok {
				pay = &e
			}
			if e, ok := receiveByDay[day]; ok {
				receive = &e
			}
			if o, ok := reconcileCurrency(lg.ID, name, day, pay, receive); ok {
				obs = append(obs, o)
			}
		}
		if len(obs) == 0 {
			continue
		}

		n, err := b.currency.InsertBatch(ctx, obs)
		if err != nil {
			logger.Warn("batch insert failed",
				slog.String("entity", name),
				slog.String("error", err.Error()))
			continue
		}
		written += n
		if n > 0 {
			processed++
		}
	}
	return processed, written, nil
}

// singleSidedStore is the store shape shared by cards and items.
type singleSidedStore[T any] interface {
	domain.ObservationIndex
	InsertBatch(ctx context.Context, obs []T) (int64, error)
}

// backfillSingleSided handles the cards and items categories, which share
// the single-sided reconciliation shape and differ only in record type.
func backfillSingleSided[T any](
	ctx context.Context,
	b *Backfiller,
	logger *slog.Logger,
	lg domain.League,
	category domain.Category,
	lookbackDays int,
	store singleSidedStore[T],
	reconcile func(leagueID int64, name string, day time.Time, e poeninja.HistoryEntry) T,
) (int, int64, error) {
	entities, err := b.resolver.Resolve(ctx, lg, category, store)
	if err != nil {
		return 0, 0, err
	}

	today := b.now()
	processed := 0
	var written int64
	for name, id := range entities {
		if err := ctx.Err(); err != nil {
			return processed, written, err
		}

		stored, err := store.DistinctDates(ctx, lg.ID, name)
		if err != nil {
			logger.Warn("stored dates query failed",
				slog.String("entity", name),
				slog.String("error", err.Error()))
			continue
		}
		missing := MissingDates(stored, today, lookbackDays)
		if len(missing) == 0 {
			continue
		}

		entries, err := b.history.ItemHistory(ctx, lg.Name, category, id)
		if err != nil {
			logger.Warn("history fetch failed",
				slog.String("entity", name),
				slog.String("error", err.Error()))
			continue
		}
		byDay := indexByDay(entries, today)

		var obs []T
		for _, day := range missing {
			e, ok := byDay[day]
			if !ok {
				continue
			}
			// The upstream value is stored verbatim, zero included: a day
			// whose only point is 0 is still a closed gap.
			obs = append(obs, reconcile(lg.ID, name, day, e))
		}
		if len(obs) == 0 {
			continue
		}

		n, err := store.InsertBatch(ctx, obs)
		if err != nil {
			logger.Warn("batch insert failed",
				slog.String("entity", name),
				slog.String("error", err.Error()))
			continue
		}
		written += n
		if n > 0 {
			processed++
		}
	}
	return processed, written, nil
}
