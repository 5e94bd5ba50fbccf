package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-data/kestrel/internal/config"
	"github.com/kestrel-data/kestrel/internal/pipeline"
	"github.com/kestrel-data/kestrel/internal/source"
	"github.com/kestrel-data/kestrel/internal/store"
)

var (
	runProject string
	runDryRun  bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute a single ETL run and exit",
		RunE:  runOnce,
	}
)

func init() {
	runCmd.Flags().StringVar(&runProject, "project", "", "process a single project instead of the configured list")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract and enrich without writing anything")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	projects := cfg.Projects
	if runProject != "" {
		projects = []string{runProject}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runner := pipeline.NewRunner(source.NewDir(cfg.DataDir), db, db, db, nil, pipeline.Config{
		Projects:       projects,
		TargetCurrency: cfg.TargetCurrency,
		StrictSources:  cfg.StrictSources,
		DryRun:         runDryRun,
	}, slog.Default())

	stats, err := runner.Run(ctx, uuid.New())
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Run Summary ===\n")
	fmt.Printf("Run: %s\n", stats.RunID)
	for _, p := range stats.Projects {
		if p.Error != "" {
			fmt.Printf("  %s: FAILED: %s\n", p.Project, p.Error)
			continue
		}
		fmt.Printf("  %s: %d sessions, %d written", p.Project, p.Sessions, p.Written)
		if p.RateMisses > 0 {
			fmt.Printf(" (%d rate misses)", p.RateMisses)
		}
		fmt.Printf("\n")
	}
	if stats.DryRun {
		fmt.Printf("Mode: DRY RUN (no writes)\n")
	}

	if n := stats.ErrorCount(); n > 0 {
		return fmt.Errorf("%d of %d projects failed", n, len(stats.Projects))
	}
	return nil
}
