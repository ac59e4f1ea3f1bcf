package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/platform/poeninja"
)

// CatalogClient provides the upstream display-name -> id catalog for a
// (league, category) pair. *poeninja.Client satisfies it.
type CatalogClient interface {
	Catalog(ctx context.Context, league string, category domain.Category) (map[string]int, error)
}

// Resolver decides which entities a backfill run covers: the exact-name
// intersection of the upstream catalog and the names already observed in
// storage. Entities seen only upstream have no series to extend; entities
// seen only in storage no longer resolve to an upstream id.
type Resolver struct {
	catalogs CatalogClient
	cache    domain.CatalogCache // nil when caching is disabled
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(catalogs CatalogClient, cache domain.CatalogCache, cacheTTL time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		catalogs: catalogs,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("component", "entity_resolver")),
	}
}

// Resolve returns the name -> upstream-id map of backfillable entities for a
// league and category. The chaos orb is excluded: it is definitionally worth
// one of itself.
func (r *Resolver) Resolve(ctx context.Context, lg domain.League, category domain.Category, index domain.ObservationIndex) (map[string]int, error) {
	catalog, err := r.catalog(ctx, lg.Name, category)
	if err != nil {
		return nil, fmt.Errorf("backfill: resolve catalog %s/%s: %w", lg.Name, category, err)
	}

	stored, err := index.DistinctNames(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("backfill: stored names %s/%s: %w", lg.Name, category, err)
	}

	resolved := make(map[string]int)
	for _, name := range stored {
		id, ok := catalog[name]
		if !ok {
			continue
		}
		if category == domain.CategoryCurrency && id == poeninja.ChaosOrbID {
			continue
		}
		resolved[name] = id
	}

	r.logger.Debug("resolved entities",
		slog.String("league", lg.Name),
		slog.String("category", string(category)),
		slog.Int("catalog", len(catalog)),
		slog.Int("stored", len(stored)),
		slog.Int("resolved", len(resolved)))
	return resolved, nil
}

// catalog consults the cache first and falls back to the upstream overview.
// Cache failures are logged and degrade to a direct fetch.
func (r *Resolver) catalog(ctx context.Context, league string, category domain.Category) (map[string]int, error) {
	if r.cache != nil {
		cached, err := r.cache.GetCatalog(ctx, category, league)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("catalog cache read failed",
				slog.String("league", league),
				slog.String("category", string(category)),
				slog.String("error", err.Error()))
		}
	}

	catalog, err := r.catalogs.Catalog(ctx, league, category)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetCatalog(ctx, category, league, catalog, r.cacheTTL); err != nil {
			r.logger.Warn("catalog cache write failed",
				slog.String("league", league),
				slog.String("category", string(category)),
				slog.String("error", err.Error()))
		}
	}
	return catalog, nil
}
