package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/cli"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker)
	logger.Info("Starting budget-worker", "version", cli.Version(), "backend", cfg.ExportBackend)

	repo := cli.InitSQLite(logger, cfg.DBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize export backend", applog.FieldError, err)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	// The worker reads the same database as the web server; it never
	// publishes events itself.
	budget := services.NewBudgetService(repo, nil, logger, services.Config{CacheTTL: cfg.CacheTTL})
	exporter := worker.NewExportWorker(budget, repo, result.Exporter, logger, 4)

	// Without a broker a periodic full export replaces the event stream.
	var scheduler *services.ExportScheduler
	if !cfg.AMQPEnabled() {
		schedCfg := services.DefaultExportSchedulerConfig()
		// StartupExportCheck below already exports everyone once.
		schedCfg.RunOnStart = false
		scheduler = services.NewExportScheduler(exporter, schedCfg)
	}
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				logger.Warn("Export scheduler stop failed", applog.FieldError, err)
			}
		}
	})

	if err := exporter.StartupExportCheck(ctx); err != nil {
		// Keep running; the next event or scheduled run retries.
		logger.Error("Startup export check failed", applog.FieldError, err)
	}

	if scheduler != nil {
		logger.Info("AMQP disabled - falling back to scheduled exports")
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start export scheduler", applog.FieldError, err)
			os.Exit(1)
		}
		<-done
		logger.Info("Worker stopped gracefully")
		return
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.ConsumeBudgetEvents(ctx, exporter.HandleBudgetEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
