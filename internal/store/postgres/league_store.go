package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// LeagueStore implements domain.LeagueStore using PostgreSQL.
type LeagueStore struct {
	pool *pgxpool.Pool
}

// NewLeagueStore creates a new LeagueStore backed by the given pool.
func NewLeagueStore(pool *pgxpool.Pool) *LeagueStore {
	return &LeagueStore{pool: pool}
}

// GetByName looks a league up by its exact name.
func (s *LeagueStore) GetByName(ctx context.Context, name string) (domain.League, error) {
	const query = `SELECT id, league_name, status, start_date FROM leagues WHERE league_name = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, name), name)
}

// GetByID looks a league up by id.
func (s *LeagueStore) GetByID(ctx context.Context, id int64) (domain.League, error) {
	const query = `SELECT id, league_name, status, start_date FROM leagues WHERE id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, id), fmt.Sprintf("id=%d", id))
}

func (s *LeagueStore) scanOne(row pgx.Row, ref string) (domain.League, error) {
	var l domain.League
	var status string
	err := row.Scan(&l.ID, &l.Name, &status, &l.StartDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.League{}, fmt.Errorf("postgres: league %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return domain.League{}, fmt.Errorf("postgres: get league %s: %w", ref, err)
	}
	l.Status = domain.LeagueStatus(status)
	return l, nil
}

// Create inserts a new league and returns its id.
func (s *LeagueStore) Create(ctx context.Context, league domain.League) (int64, error) {
	const query = `
		INSERT INTO leagues (league_name, status, start_date)
		VALUES ($1, $2, $3)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		league.Name, string(league.Status), league.StartDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create league %s: %w", league.Name, err)
	}
	return id, nil
}

// List returns all leagues, newest first, optionally filtered by status.
func (s *LeagueStore) List(ctx context.Context, status *domain.LeagueStatus) ([]domain.League, error) {
	query := `SELECT id, league_name, status, start_date FROM leagues ORDER BY start_date DESC`
	args := []any{}
	if status != nil {
		query = `SELECT id, league_name, status, start_date FROM leagues WHERE status = $1 ORDER BY start_date DESC`
		args = append(args, string(*status))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list leagues: %w", err)
	}
	defer rows.Close()

	var leagues []domain.League
	for rows.Next() {
		var l domain.League
		var st string
		if err := rows.Scan(&l.ID, &l.Name, &st, &l.StartDate); err != nil {
			return nil, fmt.Errorf("postgres: scan league: %w", err)
		}
		l.Status = domain.LeagueStatus(st)
		leagues = append(leagues, l)
	}
	return leagues, rows.Err()
}

// UpdateStatus sets the status of the named league.
func (s *LeagueStore) UpdateStatus(ctx context.Context, name string, status domain.LeagueStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leagues SET status = $1 WHERE league_name = $2`,
		string(status), name,
	)
	if err != nil {
		return fmt.Errorf("postgres: update league %s status: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: league %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LeagueStore = (*LeagueStore)(nil)
