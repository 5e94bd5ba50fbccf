package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-data/kestrel/internal/config"
	"github.com/kestrel-data/kestrel/internal/source"
	"github.com/kestrel-data/kestrel/internal/store"
)

var (
	loadTransactions string
	loadRates        string

	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Replace the ledger tables from CSV exports",
		RunE:  runLoad,
	}
)

func init() {
	loadCmd.Flags().StringVar(&loadTransactions, "transactions", "", "path to transactions CSV")
	loadCmd.Flags().StringVar(&loadRates, "rates", "", "path to exchange rates CSV")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if loadTransactions == "" && loadRates == "" {
		return errors.New("nothing to load: pass --transactions and/or --rates")
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

	if loadRates != "" {
		rates, err := source.ReadExchangeRates(loadRates)
		if err != nil {
			return fmt.Errorf("read rates: %w", err)
		}
		n, err := db.ReplaceExchangeRates(ctx, rates)
		if err != nil {
			return fmt.Errorf("load rates: %w", err)
		}
		slog.Info("exchange rates loaded", "rows", n)
	}

	if loadTransactions != "" {
		txs, err := source.ReadTransactions(loadTransactions)
		if err != nil {
			return fmt.Errorf("read transactions: %w", err)
		}
		n, err := db.ReplaceTransactions(ctx, txs)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		slog.Info("transactions loaded", "rows", n)
	}

	return nil
}
