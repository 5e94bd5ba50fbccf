package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// epochStart is the sentinel watermark used on a cold start with no run
// history at all.
var epochStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// RunHistory exposes the run bookkeeping the watermark derives from. The
// store implements it against the etl_runs and etl_watermarks tables.
type RunHistory interface {
	// ProjectWatermark returns the high-water mark committed with the
	// project's last successful load, if any.
	ProjectWatermark(ctx context.Context, project string) (time.Time, bool, error)
	// PreviousRunStartedAt returns the start time of the most recent
	// completed run, if any.
	PreviousRunStartedAt(ctx context.Context) (time.Time, bool, error)
	RecordRunStart(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	CompleteRun(ctx context.Context, id uuid.UUID, status string, written, errCount int) error
}

// WatermarkProvider resolves the incremental boundary for a project. It
// prefers the per-project mark committed with the last load, falls back to
// the previous run's start time, and bottoms out at the epoch sentinel.
// Resolution is read-only and deterministic for a given history.
type WatermarkProvider struct {
	history RunHistory
}

func NewWatermarkProvider(history RunHistory) *WatermarkProvider {
	return &WatermarkProvider{history: history}
}

func (w *WatermarkProvider) Resolve(ctx context.Context, project string) (time.Time, error) {
	ts, ok, err := w.history.ProjectWatermark(ctx, project)
	if err != nil {
		return time.Time{}, fmt.Errorf("project watermark: %w", err)
	}
	if ok {
		return ts, nil
	}
	ts, ok, err = w.history.PreviousRunStartedAt(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("previous run start: %w", err)
	}
	if ok {
		return ts, nil
	}
	return epochStart, nil
}
