package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/auth"
	"budget/internal/cache"
	"budget/internal/cli"
	apphttp "budget/internal/http"
	applog "budget/internal/log"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

const sessionPruneInterval = time.Hour

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp)
	version := cli.Version()
	logger.Info("Starting budget server", "version", version, "port", cfg.Port, "base_path", cfg.BasePath)

	repo := cli.InitSQLite(logger, cfg.DBPath)
	defer repo.Close()

	// Events and reset notifications are optional. Interfaces stay nil when
	// no broker is configured so the services skip publishing.
	var (
		publisher services.EventPublisher
		notifier  auth.ResetNotifier
	)
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher, notifier = client, client
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - budget events and reset notifications are not published")
	}

	sessions := auth.NewSQLiteSessionStore(repo)
	authn := auth.NewAuthenticator(repo, sessions, notifier, auth.Config{
		SessionTTL:    cfg.SessionTTL,
		ResetTokenTTL: cfg.ResetTokenTTL,
	})
	budget := services.NewBudgetService(repo, publisher, logger, services.Config{CacheTTL: cfg.CacheTTL})

	caches := cache.NewManager()
	caches.Register(budget.Cache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:             ":" + cfg.Port,
		BasePath:         cfg.BasePath,
		SecureCookies:    cfg.SecureCookies,
		TrustedProxies:   cfg.TrustedProxies,
		DemoSessionTTL:   cfg.DemoSessionTTL,
		LoginMaxAttempts: cfg.LoginMaxAttempts,
		LoginWindow:      cfg.LoginWindow,
		Version:          version,
	}, apphttp.Deps{
		Auth:    authn,
		Budget:  budget,
		DB:      repo,
		Metrics: trace.NewMetrics(),
		Logger:  logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
	})

	go pruneSessions(ctx, sessions, logger)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}

// pruneSessions deletes expired sessions until ctx is cancelled.
func pruneSessions(ctx context.Context, store *auth.SQLiteSessionStore, logger *applog.Logger) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx)
			if err != nil {
				logger.Warn("Session prune failed", applog.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Debug("Expired sessions pruned", "count", n)
			}
		}
	}
}
