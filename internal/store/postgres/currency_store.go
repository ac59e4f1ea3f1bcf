package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// CurrencyStore implements domain.CurrencyStore using PostgreSQL.
type CurrencyStore struct {
	observationIndex
}

// NewCurrencyStore creates a new CurrencyStore backed by the given pool.
func NewCurrencyStore(pool *pgxpool.Pool) *CurrencyStore {
	return &CurrencyStore{observationIndex{
		pool:    pool,
		table:   "currency_prices",
		nameCol: "currency_name",
	}}
}

// InsertBatch appends observations in one batch, skipping rows that collide
// with the per-day uniqueness index, and returns the number actually
// inserted. A failing batch fails as a whole.
func (s *CurrencyStore) InsertBatch(ctx context.Context, obs []domain.CurrencyObservation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO currency_prices (
			league_id, currency_name, "timestamp",
			chaos_equivalent, pay_value, receive_value,
			trade_count, details_id, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (league_id, currency_name, "timestamp") DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query,
			o.LeagueID, o.CurrencyName, o.Timestamp,
			o.ChaosEquivalent, o.PayValue, o.ReceiveValue,
			o.TradeCount, o.DetailsID, string(o.Source),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range obs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert currency batch item %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Compile-time interface check.
var _ domain.CurrencyStore = (*CurrencyStore)(nil)
