// Package league resolves league names against the store and keeps league
// statuses in sync with the published league list.
package league

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// Registry is the single entry point for turning a league name into a stored
// league row. Unknown names are registered on first sight so ingestion never
// stalls on a league that has not been seen before.
type Registry struct {
	store  domain.LeagueStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store domain.LeagueStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.With(slog.String("component", "league_registry")),
		now:    time.Now,
	}
}

// Resolve returns the stored league for name, creating it when absent. New
// leagues default to Active with the current UTC date as start date; Sync
// corrects both once the published league list is consulted.
func (r *Registry) Resolve(ctx context.Context, name string) (domain.League, error) {
	l, err := r.store.GetByName(ctx, name)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.League{}, fmt.Errorf("league: resolve %s: %w", name, err)
	}

	created := domain.League{
		Name:      name,
		Status:    domain.LeagueStatusActive,
		StartDate: r.now().UTC().Truncate(24 * time.Hour),
	}
	id, err := r.store.Create(ctx, created)
	if err != nil {
		// Another process may have registered the league concurrently.
		if l, getErr := r.store.GetByName(ctx, name); getErr == nil {
			return l, nil
		}
		return domain.League{}, fmt.Errorf("league: register %s: %w", name, err)
	}
	created.ID = id

	r.logger.Info("registered league",
		slog.String("league", name),
		slog.Int64("id", id))
	return created, nil
}

// Sync reconciles stored leagues with the published league list: unknown
// leagues are created with their published start date and every status that
// drifted (a league rotating from Active to Expired) is updated in place.
func (r *Registry) Sync(ctx context.Context, infos []domain.LeagueInfo) error {
	for _, info := range infos {
		stored, err := r.store.GetByName(ctx, info.Name)
		if errors.Is(err, domain.ErrNotFound) {
			if _, err := r.store.Create(ctx, domain.League{
				Name:      info.Name,
				Status:    info.Status,
				StartDate: info.StartDate,
			}); err != nil {
				return fmt.Errorf("league: sync create %s: %w", info.Name, err)
			}
			r.logger.Info("registered league",
				slog.String("league", info.Name),
				slog.String("status", string(info.Status)))
			continue
		}
		if err != nil {
			return fmt.Errorf("league: sync %s: %w", info.Name, err)
		}

		if stored.Status != info.Status {
			if err := r.store.UpdateStatus(ctx, info.Name, info.Status); err != nil {
				return fmt.Errorf("league: sync status %s: %w", info.Name, err)
			}
			r.logger.Info("league status changed",
				slog.String("league", info.Name),
				slog.String("from", string(stored.Status)),
				slog.String("to", string(info.Status)))
		}
	}
	return nil
}

// List returns stored leagues, newest first, optionally filtered by status.
func (r *Registry) List(ctx context.Context, status *domain.LeagueStatus) ([]domain.League, error) {
	return r.store.List(ctx, status)
}
