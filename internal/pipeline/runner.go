package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LedgerSource reads the shared financial tables in full; the run filters
// and indexes them in memory.
type LedgerSource interface {
	Transactions(ctx context.Context) ([]Transaction, error)
	ExchangeRates(ctx context.Context) ([]ExchangeRate, error)
}

// AnalyticsSink appends a batch of enriched rows and advances the project
// watermark. Implementations must treat the batch atomically: either every
// row lands together with the watermark, or nothing does.
type AnalyticsSink interface {
	LoadBatch(ctx context.Context, project string, records []EnrichedSession, watermark time.Time) (int, error)
}

// Publisher announces run lifecycle events on the bus. A nil Publisher
// disables announcements.
type Publisher interface {
	Publish(subject string, data any) error
}

// Bus subjects for run lifecycle announcements.
const (
	SubjectRunStarted   = "etl.run.started"
	SubjectRunCompleted = "etl.run.completed"
)

// Run completion statuses recorded in run history.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Config holds one run's parameters.
type Config struct {
	Projects       []string
	TargetCurrency string
	StrictSources  bool
	DryRun         bool
}

// ProjectStats summarizes one project's pipeline within a run.
type ProjectStats struct {
	Project    string `json:"project"`
	Sessions   int    `json:"sessions"`
	Written    int    `json:"written"`
	RateMisses int    `json:"rate_misses"`
	Error      string `json:"error,omitempty"`
}

// RunStats summarizes one complete run across all projects.
type RunStats struct {
	RunID      uuid.UUID      `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DryRun     bool           `json:"dry_run"`
	Projects   []ProjectStats `json:"projects"`
}

// TotalWritten sums rows written across projects.
func (s *RunStats) TotalWritten() int {
	n := 0
	for _, p := range s.Projects {
		n += p.Written
	}
	return n
}

// ErrorCount counts projects that failed.
func (s *RunStats) ErrorCount() int {
	n := 0
	for _, p := range s.Projects {
		if p.Error != "" {
			n++
		}
	}
	return n
}

// Runner executes one ETL run: resolve watermarks, extract per project,
// count events, enrich with ledger data, assemble, and load. Projects are
// isolated: they run concurrently and one project's failure never blocks the
// rest.
type Runner struct {
	source  SessionSource
	ledger  LedgerSource
	sink    AnalyticsSink
	history RunHistory
	bus     Publisher
	cfg     Config
	logger  *slog.Logger
}

func NewRunner(source SessionSource, ledger LedgerSource, sink AnalyticsSink, history RunHistory, bus Publisher, cfg Config, logger *slog.Logger) *Runner {
	if cfg.TargetCurrency == "" {
		cfg.TargetCurrency = "USD"
	}
	return &Runner{
		source:  source,
		ledger:  ledger,
		sink:    sink,
		history: history,
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes the ETL for every configured project. Per-project failures
// land in the returned stats; the error return is reserved for run-level
// failures (run bookkeeping, ledger reads). Dry runs skip all writes,
// including run history.
func (r *Runner) Run(ctx context.Context, runID uuid.UUID) (*RunStats, error) {
	stats := &RunStats{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		DryRun:    r.cfg.DryRun,
	}

	if !r.cfg.DryRun {
		if err := r.history.RecordRunStart(ctx, runID, stats.StartedAt); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}
	r.publish(SubjectRunStarted, map[string]any{
		"run_id":   runID.String(),
		"projects": r.cfg.Projects,
		"dry_run":  r.cfg.DryRun,
	})

	// Shared read-only inputs, loaded once per run.
	rateRows, err := r.ledger.ExchangeRates(ctx)
	if err != nil {
		return nil, r.failRun(ctx, runID, fmt.Errorf("load exchange rates: %w", err))
	}
	txRows, err := r.ledger.Transactions(ctx)
	if err != nil {
		return nil, r.failRun(ctx, runID, fmt.Errorf("load transactions: %w", err))
	}

	rates := NewRateTable(r.cfg.TargetCurrency, rateRows)
	txIndex := NewTransactionIndex(txRows)
	watermarks := NewWatermarkProvider(r.history)

	results := make([]ProjectStats, len(r.cfg.Projects))
	var wg sync.WaitGroup
	for i, project := range r.cfg.Projects {
		wg.Add(1)
		go func(i int, project string) {
			defer wg.Done()
			results[i] = r.runProject(ctx, project, watermarks, txIndex, rates)
		}(i, project)
	}
	wg.Wait()

	stats.Projects = results
	stats.FinishedAt = time.Now().UTC()

	if !r.cfg.DryRun {
		status := StatusSuccess
		if stats.ErrorCount() > 0 {
			status = StatusPartial
		}
		if err := r.history.CompleteRun(ctx, runID, status, stats.TotalWritten(), stats.ErrorCount()); err != nil {
			r.logger.Error("failed to record run completion", "run_id", runID, "error", err)
		}
	}
	r.publish(SubjectRunCompleted, stats)

	r.logger.Info("run complete",
		"run_id", runID,
		"projects", len(stats.Projects),
		"written", stats.TotalWritten(),
		"errors", stats.ErrorCount(),
		"dry_run", r.cfg.DryRun,
	)
	return stats, nil
}

func (r *Runner) runProject(ctx context.Context, project string, watermarks *WatermarkProvider, txIndex *TransactionIndex, rates *RateTable) ProjectStats {
	ps := ProjectStats{Project: project}
	log := r.logger.With("project", project)

	watermark, err := watermarks.Resolve(ctx, project)
	if err != nil {
		ps.Error = err.Error()
		log.Error("watermark resolution failed", "error", err)
		return ps
	}

	ext := NewExtractor(r.source, r.cfg.StrictSources, log)
	sessions, events, err := ext.Extract(ctx, project, watermark)
	if err != nil {
		ps.Error = err.Error()
		log.Error("extraction failed", "error", err)
		return ps
	}
	if len(sessions) == 0 {
		log.Info("no new sessions", "watermark", watermark)
		return ps
	}
	ps.Sessions = len(sessions)

	eventIndex := NewEventIndex(events)
	enricher := NewEnricher(txIndex, rates, log)

	records := make([]EnrichedSession, 0, len(sessions))
	var highWater time.Time
	for _, s := range sessions {
		count := eventIndex.CountForSession(s)
		records = append(records, AssembleRecord(s, count, enricher.Enrich(s)))
		if s.UpdatedAt.After(highWater) {
			highWater = s.UpdatedAt
		}
	}
	ps.RateMisses = enricher.RateMisses()

	if r.cfg.DryRun {
		log.Info("dry run, skipping load", "records", len(records))
		return ps
	}

	written, err := r.sink.LoadBatch(ctx, project, records, highWater)
	if err != nil {
		ps.Error = err.Error()
		log.Error("load failed", "error", err)
		return ps
	}
	ps.Written = written

	log.Info("project processed",
		"sessions", len(sessions),
		"written", written,
		"rate_misses", ps.RateMisses,
		"watermark", watermark,
		"high_water", highWater,
	)
	return ps
}

// failRun records a run-level failure before surfacing it.
func (r *Runner) failRun(ctx context.Context, runID uuid.UUID, err error) error {
	if !r.cfg.DryRun {
		if cerr := r.history.CompleteRun(ctx, runID, StatusFailed, 0, 1); cerr != nil {
			r.logger.Error("failed to record run failure", "run_id", runID, "error", cerr)
		}
	}
	return err
}

func (r *Runner) publish(subject string, data any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish run event", "subject", subject, "error", err)
	}
}
