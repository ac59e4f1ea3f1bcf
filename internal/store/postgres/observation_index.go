package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// observationIndex implements the gap-detection queries shared by the three
// observation tables. Table and column names are fixed at construction, never
// caller-supplied.
type observationIndex struct {
	pool    *pgxpool.Pool
	table   string
	nameCol string
}

// DistinctNames returns the distinct entity names stored for a league.
func (ix observationIndex) DistinctNames(ctx context.Context, leagueID int64) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE league_id = $1`,
		ix.nameCol, ix.table,
	)
	rows, err := ix.pool.Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct names %s: %w", ix.table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres: scan name %s: %w", ix.table, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DistinctDates returns the distinct calendar days (UTC) that already hold
// an observation for one entity.
func (ix observationIndex) DistinctDates(ctx context.Context, leagueID int64, name string) ([]time.Time, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT (("timestamp" AT TIME ZONE 'UTC')::date) FROM %s WHERE league_id = $1 AND %s = $2`,
		ix.table, ix.nameCol,
	)
	rows, err := ix.pool.Query(ctx, query, leagueID, name)
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct dates %s: %w", ix.table, err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("postgres: scan date %s: %w", ix.table, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// HasData reports whether any observation exists for a league.
func (ix observationIndex) HasData(ctx context.Context, leagueID int64) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS(SELECT 1 FROM %s WHERE league_id = $1)`,
		ix.table,
	)
	var exists bool
	if err := ix.pool.QueryRow(ctx, query, leagueID).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: has data %s: %w", ix.table, err)
	}
	return exists, nil
}
