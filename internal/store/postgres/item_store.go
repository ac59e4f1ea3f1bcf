package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// ItemStore implements domain.ItemStore using PostgreSQL.
type ItemStore struct {
	observationIndex
}

// NewItemStore creates a new ItemStore backed by the given pool.
func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{observationIndex{
		pool:    pool,
		table:   "unique_items",
		nameCol: "item_name",
	}}
}

// InsertBatch appends observations in one batch, skipping rows that collide
// with the per-day uniqueness index, and returns the number actually
// inserted.
func (s *ItemStore) InsertBatch(ctx context.Context, obs []domain.ItemObservation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO unique_items (
			league_id, item_name, "timestamp",
			chaos_value, base_type, item_type,
			level_required, links, details_id, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (league_id, item_name, "timestamp") DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query,
			o.LeagueID, o.ItemName, o.Timestamp,
			o.ChaosValue, o.BaseType, o.ItemType,
			o.LevelRequired, o.Links, o.DetailsID, string(o.Source),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range obs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert item batch item %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Compile-time interface check.
var _ domain.ItemStore = (*ItemStore)(nil)
