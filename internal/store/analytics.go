package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-data/kestrel/internal/pipeline"
)

// LoadBatch appends enriched session rows and advances the project watermark
// in one transaction. A duplicate session_id rejects the whole batch with
// ErrDuplicateSession and nothing is written, including the watermark. An
// empty batch writes nothing and reports zero.
func (s *Store) LoadBatch(ctx context.Context, project string, records []pipeline.EnrichedSession, watermark time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO analytics_sessions (
				session_id, project_name, user_id, page_name, is_active,
				session_start_time, session_end_time, last_activity_time,
				events_count, transactions_sum_usd,
				first_successful_transaction_time, first_successful_transaction_usd
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rec.SessionID, rec.ProjectName, rec.UserID, rec.PageName, rec.IsActive,
			rec.SessionStartTime, rec.SessionEndTime, rec.LastActivityTime,
			rec.EventsCount, rec.TransactionsSumUSD,
			rec.FirstSuccessfulTransactionTime, rec.FirstSuccessfulTransactionUSD,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("session %s: %w", rec.SessionID, ErrDuplicateSession)
			}
			return 0, fmt.Errorf("insert session %s: %w", rec.SessionID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO etl_watermarks (project_name, watermark, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (project_name) DO UPDATE
		SET watermark = GREATEST(etl_watermarks.watermark, EXCLUDED.watermark),
		    updated_at = now()`,
		project, watermark,
	)
	if err != nil {
		return 0, fmt.Errorf("advance watermark: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}
