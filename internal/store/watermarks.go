package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProjectWatermark returns the high-water mark committed with the project's
// last successful load. ok is false when the project has never loaded.
func (s *Store) ProjectWatermark(ctx context.Context, project string) (time.Time, bool, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT watermark FROM etl_watermarks
		WHERE project_name = $1`, project).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query watermark: %w", err)
	}
	return ts, true, nil
}
