// Command run executes one forecasting run from the configured run
// spec and prints a per-asset summary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/foresight/internal/artifacts"
	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/services"
	"github.com/aristath/foresight/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	prices := database.NewPriceRepository(db)
	results := database.NewResultRepository(db)
	snapshots, err := artifacts.NewStore(cfg.SnapshotDir(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := services.NewRunner(cfg.RunSpecPath, prices, results, snapshots, log)
	run, err := runner.Execute(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	fmt.Printf("run %s  (%s)\n", run.RunID, run.FinishedAt.Sub(run.StartedAt).Round(1e6))
	for _, row := range run.Coverage {
		fmt.Printf("  coverage %-8s %5d -> %5d rows (%.1f%%)\n",
			row.Symbol, row.RowsBefore, row.RowsAfter, 100*row.RetainedRatio)
	}
	for _, asset := range run.Assets {
		if asset.Err != "" {
			fmt.Printf("  %-8s EXCLUDED: %s\n", asset.Symbol, asset.Err)
			continue
		}
		best := asset.Report.Best()
		if best == "" {
			fmt.Printf("  %-8s no usable forecast\n", asset.Symbol)
			continue
		}
		m := asset.Report.Metrics[best]
		fmt.Printf("  %-8s best=%-6s rmse=%.4f mape=%.2f%%", asset.Symbol, best, m["rmse"], m["mape"])
		if asset.Bundle != nil {
			fmt.Printf(" expected_terminal=%.2f", asset.Bundle.ExpectedTerminal)
		}
		fmt.Println()
	}
}
