package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionSource reads a project's raw session and event rows. No filtering
// is pushed down; the extractor applies the incremental filter.
type SessionSource interface {
	Sessions(ctx context.Context, project string) ([]Session, error)
	Events(ctx context.Context, project string) ([]Event, error)
}

// Extractor loads a project's sessions and keeps those updated after the
// watermark. In lenient mode an unavailable source degrades to an empty
// result with a warning so one project cannot block its siblings; in strict
// mode the same failure aborts the project. Malformed rows abort the project
// in either mode.
type Extractor struct {
	source SessionSource
	strict bool
	logger *slog.Logger
}

func NewExtractor(source SessionSource, strict bool, logger *slog.Logger) *Extractor {
	return &Extractor{source: source, strict: strict, logger: logger}
}

// Extract returns the project's sessions with UpdatedAt strictly after the
// watermark, plus the project's events for downstream counting. An empty
// session slice means nothing to do, not an error; events are not read in
// that case.
func (e *Extractor) Extract(ctx context.Context, project string, watermark time.Time) ([]Session, []Event, error) {
	all, err := e.source.Sessions(ctx, project)
	if err != nil {
		if e.strict || errors.Is(err, ErrMalformedRow) {
			return nil, nil, fmt.Errorf("load sessions for %s: %w", project, err)
		}
		e.logger.Warn("session source unavailable, treating project as empty",
			"project", project, "error", err)
		return nil, nil, nil
	}

	var sessions []Session
	for _, s := range all {
		if s.UpdatedAt.After(watermark) {
			s.ProjectName = project
			sessions = append(sessions, s)
		}
	}
	if len(sessions) == 0 {
		return nil, nil, nil
	}

	events, err := e.source.Events(ctx, project)
	if err != nil {
		if e.strict || errors.Is(err, ErrMalformedRow) {
			return nil, nil, fmt.Errorf("load events for %s: %w", project, err)
		}
		e.logger.Warn("event source unavailable, treating project as empty",
			"project", project, "error", err)
		return nil, nil, nil
	}

	return sessions, events, nil
}
