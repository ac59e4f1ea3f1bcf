package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// CardStore implements domain.CardStore using PostgreSQL.
type CardStore struct {
	observationIndex
}

// NewCardStore creates a new CardStore backed by the given pool.
func NewCardStore(pool *pgxpool.Pool) *CardStore {
	return &CardStore{observationIndex{
		pool:    pool,
		table:   "divination_cards",
		nameCol: "card_name",
	}}
}

// InsertBatch appends observations in one batch, skipping rows that collide
// with the per-day uniqueness index, and returns the number actually
// inserted.
func (s *CardStore) InsertBatch(ctx context.Context, obs []domain.CardObservation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO divination_cards (
			league_id, card_name, "timestamp",
			chaos_value, stack_size, trade_count,
			details_id, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (league_id, card_name, "timestamp") DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query,
			o.LeagueID, o.CardName, o.Timestamp,
			o.ChaosValue, o.StackSize, o.TradeCount,
			o.DetailsID, string(o.Source),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range obs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert card batch item %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Compile-time interface check.
var _ domain.CardStore = (*CardStore)(nil)
