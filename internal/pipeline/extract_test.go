package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeSource implements SessionSource in memory. Safe for the runner's
// concurrent per-project reads.
type fakeSource struct {
	sessions map[string][]Session
	events   map[string][]Event

	sessionsErr error
	eventsErr   error

	mu           sync.Mutex
	sessionCalls int
	eventCalls   int
}

func (f *fakeSource) Sessions(ctx context.Context, project string) ([]Session, error) {
	f.mu.Lock()
	f.sessionCalls++
	f.mu.Unlock()
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	return f.sessions[project], nil
}

func (f *fakeSource) Events(ctx context.Context, project string) ([]Event, error) {
	f.mu.Lock()
	f.eventCalls++
	f.mu.Unlock()
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[project], nil
}

func TestExtract_FilterIsStrictlyAfterWatermark(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		sessions: map[string][]Session{
			"project_a": {
				{ID: "s1", UserID: 1, UpdatedAt: watermark.Add(-time.Second)},
				{ID: "s2", UserID: 1, UpdatedAt: watermark}, // equal — excluded
				{ID: "s3", UserID: 1, UpdatedAt: watermark.Add(time.Second)},
			},
		},
	}
	ext := NewExtractor(src, false, testLogger())

	sessions, _, err := ext.Extract(context.Background(), "project_a", watermark)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != "s3" {
		t.Errorf("expected s3, got %s", sessions[0].ID)
	}
	if sessions[0].ProjectName != "project_a" {
		t.Errorf("expected project name stamped, got %q", sessions[0].ProjectName)
	}
}

func TestExtract_EmptyResultSkipsEventRead(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		sessions: map[string][]Session{
			"project_a": {{ID: "s1", UpdatedAt: watermark.Add(-time.Hour)}},
		},
	}
	ext := NewExtractor(src, false, testLogger())

	sessions, events, err := ext.Extract(context.Background(), "project_a", watermark)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(sessions) != 0 || len(events) != 0 {
		t.Errorf("expected empty result, got %d sessions, %d events", len(sessions), len(events))
	}
	if src.eventCalls != 0 {
		t.Errorf("expected event source untouched, got %d calls", src.eventCalls)
	}
}

func TestExtract_LenientSourceFailureIsEmpty(t *testing.T) {
	src := &fakeSource{sessionsErr: errors.New("disk on fire")}
	ext := NewExtractor(src, false, testLogger())

	sessions, events, err := ext.Extract(context.Background(), "project_a", time.Time{})
	if err != nil {
		t.Fatalf("lenient mode must not fail: %v", err)
	}
	if sessions != nil || events != nil {
		t.Errorf("expected empty result, got %v, %v", sessions, events)
	}
}

func TestExtract_StrictSourceFailureErrors(t *testing.T) {
	src := &fakeSource{sessionsErr: errors.New("disk on fire")}
	ext := NewExtractor(src, true, testLogger())

	if _, _, err := ext.Extract(context.Background(), "project_a", time.Time{}); err == nil {
		t.Fatal("strict mode must surface the source failure")
	}
}

func TestExtract_MalformedRowFailsEvenLenient(t *testing.T) {
	src := &fakeSource{sessionsErr: fmt.Errorf("user_sessions.csv:3: %w", ErrMalformedRow)}
	ext := NewExtractor(src, false, testLogger())

	_, _, err := ext.Extract(context.Background(), "project_a", time.Time{})
	if err == nil {
		t.Fatal("malformed input must fail the project in lenient mode too")
	}
	if !errors.Is(err, ErrMalformedRow) {
		t.Errorf("expected ErrMalformedRow, got %v", err)
	}
}

func TestExtract_LenientEventFailureEmptiesProject(t *testing.T) {
	watermark := time.Time{}
	src := &fakeSource{
		sessions: map[string][]Session{
			"project_a": {{ID: "s1", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)}},
		},
		eventsErr: errors.New("events.csv unreadable"),
	}
	ext := NewExtractor(src, false, testLogger())

	sessions, events, err := ext.Extract(context.Background(), "project_a", watermark)
	if err != nil {
		t.Fatalf("lenient mode must not fail: %v", err)
	}
	if sessions != nil || events != nil {
		t.Error("expected whole project treated as empty when events are unavailable")
	}
}
