//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-data/kestrel/internal/pipeline"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testRecord(sessionID, project string) pipeline.EnrichedSession {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return pipeline.EnrichedSession{
		SessionID:          sessionID,
		ProjectName:        project,
		UserID:             7,
		PageName:           "checkout",
		IsActive:           true,
		SessionStartTime:   start,
		SessionEndTime:     start.Add(30 * time.Minute),
		LastActivityTime:   start.Add(25 * time.Minute),
		EventsCount:        1,
		TransactionsSumUSD: 75.0,
	}
}

func TestIntegration_LoadBatchAndWatermark(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	project := "itest-" + uuid.New().String()[:8]
	sessionID := "itest-" + uuid.New().String()

	rec := testRecord(sessionID, project)
	watermark := rec.SessionEndTime

	n, err := s.LoadBatch(ctx, project, []pipeline.EnrichedSession{rec}, watermark)
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row written, got %d", n)
	}

	got, ok, err := s.ProjectWatermark(ctx, project)
	if err != nil {
		t.Fatalf("ProjectWatermark failed: %v", err)
	}
	if !ok {
		t.Fatal("expected watermark row after load")
	}
	if !got.Equal(watermark) {
		t.Errorf("expected watermark %v, got %v", watermark, got)
	}
}

func TestIntegration_DuplicateLoadRejectsBatch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	project := "itest-" + uuid.New().String()[:8]
	sessionID := "itest-" + uuid.New().String()

	rec := testRecord(sessionID, project)

	if _, err := s.LoadBatch(ctx, project, []pipeline.EnrichedSession{rec}, rec.SessionEndTime); err != nil {
		t.Fatalf("first load failed: %v", err)
	}

	// The second batch carries the duplicate plus a fresh row; both must be
	// rejected together.
	fresh := testRecord("itest-"+uuid.New().String(), project)
	_, err := s.LoadBatch(ctx, project, []pipeline.EnrichedSession{rec, fresh}, fresh.SessionEndTime)
	if err == nil {
		t.Fatal("expected duplicate batch to fail")
	}
	if !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("expected ErrDuplicateSession, got %v", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM analytics_sessions WHERE session_id = $1`, sessionID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row for the duplicate key, got %d", count)
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM analytics_sessions WHERE session_id = $1`, fresh.SessionID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rolled-back sibling row absent, got %d", count)
	}
}

func TestIntegration_EmptyBatchIsNoOp(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	project := "itest-" + uuid.New().String()[:8]

	n, err := s.LoadBatch(ctx, project, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("empty LoadBatch failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows written, got %d", n)
	}

	if _, ok, err := s.ProjectWatermark(ctx, project); err != nil {
		t.Fatalf("ProjectWatermark failed: %v", err)
	} else if ok {
		t.Error("empty batch must not create a watermark")
	}
}

func TestIntegration_RunHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	runID := uuid.New()
	startedAt := time.Now().UTC().Truncate(time.Microsecond)

	if err := s.RecordRunStart(ctx, runID, startedAt); err != nil {
		t.Fatalf("RecordRunStart failed: %v", err)
	}
	if err := s.CompleteRun(ctx, runID, "success", 5, 0); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	got, ok, err := s.PreviousRunStartedAt(ctx)
	if err != nil {
		t.Fatalf("PreviousRunStartedAt failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a completed run to be visible")
	}
	if got.Before(startedAt) {
		t.Errorf("expected most recent run >= %v, got %v", startedAt, got)
	}
}
