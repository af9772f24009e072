package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/internal/db"
	"github.com/driftlab/skyfeed/internal/firehose"
	"github.com/driftlab/skyfeed/internal/ingest"
	"github.com/driftlab/skyfeed/internal/reaper"
	"github.com/driftlab/skyfeed/pkg/config"
	"github.com/driftlab/skyfeed/pkg/logging"
	"github.com/driftlab/skyfeed/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Skyfeed Ingester")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)
	graph := db.NewGraphRepository(repo)
	state := db.NewStateRepository(repo)

	processor := ingest.NewProcessor(&cfg.Ingest, posts, graph)
	subscriber := firehose.NewSubscriber(&cfg.Firehose, processor, state)
	retention := reaper.New(&cfg.Reaper, posts, graph)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go retention.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- subscriber.Run(ctx)
	}()

	// Wait for interrupt signal or subscriber failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down ingester...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Fatal("Firehose subscription failed", zap.Error(err))
		}
	}

	logger.Info("Ingester exited")
}
