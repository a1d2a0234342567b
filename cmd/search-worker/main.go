package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/garnizeh/searchcoordinator/internal/config"
	"github.com/garnizeh/searchcoordinator/internal/logging"
	"github.com/garnizeh/searchcoordinator/internal/worker"
)

func main() {
	configPath := flag.String("config", "./worker.json", "path to the worker JSON configuration file")
	flag.Parse()

	cfg, err := config.LoadWorker(*configPath)
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

	sup := worker.NewSupervisor(cfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("search worker pool starting")
	if err := sup.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("search worker pool stopped gracefully")
			return
		}
		log.Fatalf("search worker pool failed: %v", err)
	}
	logger.Info("search worker pool stopped gracefully")
}
