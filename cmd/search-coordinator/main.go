package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garnizeh/searchcoordinator/internal/config"
	"github.com/garnizeh/searchcoordinator/internal/coordinator"
	"github.com/garnizeh/searchcoordinator/internal/jobqueue"
	"github.com/garnizeh/searchcoordinator/internal/logging"
)

func main() {
	configPath := flag.String("config", "./coordinator.json", "path to the coordinator JSON configuration file")
	flag.Parse()

	cfg, err := config.LoadCoordinator(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	levels := logging.Levels{
		Debug:   cfg.Logger.Debug,
		Info:    cfg.Logger.Info,
		Success: cfg.Logger.Success,
		Warning: cfg.Logger.Warning,
		Error:   cfg.Logger.Error,
	}
	logger, err := logging.New(levels, cfg.Logger.FilePath)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// The hub must exist before the engine, so the engine's event sink
	// and the server's stream handler share the same instance.
	hub := coordinator.NewEventHub(logger)

	timing := jobqueue.JobTiming{
		TargetDurationSeconds: cfg.Search.Job.TargetDurationSeconds,
		UpdateIntervalSeconds: cfg.Search.Job.UpdateIntervalSeconds,
		TimeoutSeconds:        cfg.Search.Job.TimeoutSeconds,
	}
	engine, err := jobqueue.NewFromCheckpoint(cfg.Search.FilePath, timing, jobqueue.WithEventSink(hub))
	if err != nil {
		log.Fatalf("failed to load checkpoint: %v", err)
	}

	srv := coordinator.New(engine, cfg.APIKey, logger, hub)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The sweeper reclaims expired Running jobs so nextStartIndex can
	// keep advancing under worker churn — it must run for the lifetime
	// of the process, not just inside tests.
	go func() {
		if err := engine.RunSweeper(ctx); err != nil {
			logger.Error("expiry sweeper stopped with error", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("starting search coordinator on " + addr)

	if err := srv.Start(ctx, addr); err != nil {
		log.Fatalf("coordinator stopped with error: %v", err)
	}
	logger.Info("coordinator exited cleanly")
}
