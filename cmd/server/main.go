package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/foresight/internal/artifacts"
	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/scheduler"
	"github.com/aristath/foresight/internal/server"
	"github.com/aristath/foresight/internal/services"
	"github.com/aristath/foresight/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Logger not up yet; fall back to stderr
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Foresight")

	// Initialize database
	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	prices := database.NewPriceRepository(db)
	results := database.NewResultRepository(db)

	snapshots, err := artifacts.NewStore(cfg.SnapshotDir(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}

	runner := services.NewRunner(cfg.RunSpecPath, prices, results, snapshots, log)

	// Initialize scheduler for unattended runs
	sched := scheduler.New(log)
	if cfg.Schedule != "" {
		if err := sched.AddJob(cfg.Schedule, runner); err != nil {
			log.Fatal().Err(err).Msg("Failed to register forecast job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DB:        db,
		Results:   results,
		Snapshots: snapshots,
		DevMode:   cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
