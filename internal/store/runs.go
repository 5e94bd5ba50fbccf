package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordRunStart inserts a new etl_runs row in the running state.
func (s *Store) RecordRunStart(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO etl_runs (id, started_at, status)
		VALUES ($1, $2, 'running')`,
		id, startedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// CompleteRun finalizes a run row with its outcome.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, status string, written, errCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE etl_runs
		SET status = $1, sessions_written = $2, error_count = $3, finished_at = now()
		WHERE id = $4`,
		status, written, errCount, id,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// PreviousRunStartedAt returns the start time of the most recent completed
// run. ok is false on a cold start with no completed runs.
func (s *Store) PreviousRunStartedAt(ctx context.Context) (time.Time, bool, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT started_at FROM etl_runs
		WHERE status <> 'running'
		ORDER BY started_at DESC
		LIMIT 1`).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query previous run: %w", err)
	}
	return ts, true, nil
}
