package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-data/kestrel/internal/api"
	"github.com/kestrel-data/kestrel/internal/bus"
	"github.com/kestrel-data/kestrel/internal/config"
	"github.com/kestrel-data/kestrel/internal/source"
	"github.com/kestrel-data/kestrel/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ETL service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("kestrel starting", "port", cfg.Port, "projects", cfg.Projects)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("database connected")

	src := source.NewDir(cfg.DataDir)

	// NATS is optional — without it, runs are triggered over HTTP only.
	var busClient *bus.Client
	if cfg.NatsURL != "" {
		busClient, err = bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer busClient.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — runs must be triggered over HTTP")
	}

	coord := newCoordinator(ctx, src, db, busClient, cfg)

	if busClient != nil {
		if err := busClient.Subscribe(bus.SubjectRunRequested, func(subject string, data []byte) {
			if _, ok := coord.Trigger(); !ok {
				slog.Warn("run requested while another run is in flight")
			}
		}); err != nil {
			return fmt.Errorf("subscribe to run requests: %w", err)
		}
	}

	srv := api.NewServer(cfg.Port, coord.LastRun, coord.Trigger)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("kestrel ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("kestrel stopped")
	return nil
}
