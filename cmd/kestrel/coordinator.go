package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrel-data/kestrel/internal/bus"
	"github.com/kestrel-data/kestrel/internal/config"
	"github.com/kestrel-data/kestrel/internal/pipeline"
	"github.com/kestrel-data/kestrel/internal/source"
	"github.com/kestrel-data/kestrel/internal/store"
)

// coordinator serializes ETL runs: only one run may be in flight at a time,
// matching the single-writer assumption of the output relation.
type coordinator struct {
	ctx context.Context
	src *source.Dir
	db  *store.Store
	bus *bus.Client
	cfg config.Config

	mu      sync.Mutex
	running bool
	last    *pipeline.RunStats
}

func newCoordinator(ctx context.Context, src *source.Dir, db *store.Store, busClient *bus.Client, cfg config.Config) *coordinator {
	return &coordinator{ctx: ctx, src: src, db: db, bus: busClient, cfg: cfg}
}

// Trigger starts a run in the background. It reports false without starting
// anything when a run is already in flight.
func (c *coordinator) Trigger() (uuid.UUID, bool) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return uuid.Nil, false
	}
	c.running = true
	c.mu.Unlock()

	id := uuid.New()
	go c.execute(id)
	return id, true
}

// LastRun returns the stats of the most recent completed run, or nil.
func (c *coordinator) LastRun() *pipeline.RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *coordinator) execute(id uuid.UUID) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	var pub pipeline.Publisher
	if c.bus != nil {
		pub = c.bus
	}

	runner := pipeline.NewRunner(c.src, c.db, c.db, c.db, pub, pipeline.Config{
		Projects:       c.cfg.Projects,
		TargetCurrency: c.cfg.TargetCurrency,
		StrictSources:  c.cfg.StrictSources,
	}, slog.Default())

	stats, err := runner.Run(c.ctx, id)
	if err != nil {
		slog.Error("run failed", "run_id", id, "error", err)
		return
	}

	c.mu.Lock()
	c.last = stats
	c.mu.Unlock()
}
