package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/countries/internal/model"
)

// RunStore handles database operations for fetch runs
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert stores a fetch run
func (s *RunStore) Insert(ctx context.Context, run *model.FetchRun) error {
	query := `
		INSERT INTO fetch_runs (id, url, outcome, error_kind, error_message,
		                        country_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.URL,
		run.Outcome,
		run.ErrorKind,
		run.ErrorMessage,
		run.CountryCount,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fetch run %s: %w", run.ID, err)
	}

	return nil
}

// Recent retrieves the latest fetch runs, newest first
func (s *RunStore) Recent(ctx context.Context, limit int) ([]model.FetchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, url, outcome, error_kind, error_message,
		       country_count, started_at, finished_at
		FROM fetch_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []model.FetchRun
	for rows.Next() {
		var r model.FetchRun
		err := rows.Scan(
			&r.ID,
			&r.URL,
			&r.Outcome,
			&r.ErrorKind,
			&r.ErrorMessage,
			&r.CountryCount,
			&r.StartedAt,
			&r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// CountByKind returns how many runs ended in each outcome and error kind
func (s *RunStore) CountByKind(ctx context.Context) ([]model.KindCount, error) {
	query := `
		SELECT outcome, COALESCE(error_kind, ''), COUNT(*)
		FROM fetch_runs
		GROUP BY outcome, error_kind
		ORDER BY COUNT(*) DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count fetch runs: %w", err)
	}
	defer rows.Close()

	var counts []model.KindCount
	for rows.Next() {
		var kc model.KindCount
		if err := rows.Scan(&kc.Outcome, &kc.ErrorKind, &kc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan fetch run count: %w", err)
		}
		counts = append(counts, kc)
	}

	return counts, rows.Err()
}
