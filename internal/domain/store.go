package domain

import (
	"context"
	"io"
	"time"
)

// LeagueStore persists leagues.
type LeagueStore interface {
	GetByName(ctx context.Context, name string) (League, error)
	GetByID(ctx context.Context, id int64) (League, error)
	Create(ctx context.Context, league League) (int64, error)
	List(ctx context.Context, status *LeagueStatus) ([]League, error)
	UpdateStatus(ctx context.Context, name string, status LeagueStatus) error
}

// ObservationIndex exposes the queries the backfiller needs to detect gaps:
// which entity names exist for a league, which calendar days are already
// covered for one entity, and whether a league has any rows at all.
type ObservationIndex interface {
	DistinctNames(ctx context.Context, leagueID int64) ([]string, error)
	DistinctDates(ctx context.Context, leagueID int64, name string) ([]time.Time, error)
	HasData(ctx context.Context, leagueID int64) (bool, error)
}

// CurrencyStore persists currency price observations.
type CurrencyStore interface {
	ObservationIndex
	InsertBatch(ctx context.Context, obs []CurrencyObservation) (int64, error)
}

// CardStore persists divination card observations.
type CardStore interface {
	ObservationIndex
	InsertBatch(ctx context.Context, obs []CardObservation) (int64, error)
}

// ItemStore persists unique item observations.
type ItemStore interface {
	ObservationIndex
	InsertBatch(ctx context.Context, obs []ItemObservation) (int64, error)
}

// CatalogCache caches the upstream display-name -> numeric-id catalog per
// (category, league) so repeated cycles can skip the overview call.
type CatalogCache interface {
	SetCatalog(ctx context.Context, category Category, league string, catalog map[string]int, ttl time.Duration) error
	GetCatalog(ctx context.Context, category Category, league string) (map[string]int, error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// DumpArchiver stores raw bulk-dump archives in cold storage.
type DumpArchiver interface {
	ArchiveDump(ctx context.Context, league string, fetchedAt time.Time, raw []byte) (string, error)
}
