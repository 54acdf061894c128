package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/ledger_service/internal/api/routes"
	"github.com/rail-service/ledger_service/internal/infrastructure/config"
	"github.com/rail-service/ledger_service/internal/infrastructure/di"
	"github.com/rail-service/ledger_service/internal/workers/settings_refresher"
	"github.com/rail-service/ledger_service/internal/workers/withdrawal_reconciler"
	"github.com/rail-service/ledger_service/pkg/graceful"
	"github.com/rail-service/ledger_service/pkg/logger"
	"github.com/rail-service/ledger_service/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "ledger-service",
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	startupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	container, err := di.NewContainer(startupCtx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	// Background workers
	reconciler := withdrawal_reconciler.NewWorker(container.WithdrawalEngine, withdrawal_reconciler.Config{
		Schedule:   cfg.Workers.WithdrawalReconcileSchedule,
		BatchSize:  cfg.Workers.WithdrawalReconcileBatch,
		JobTimeout: time.Duration(cfg.Workers.JobTimeout) * time.Second,
	}, log.Zap())
	if err := reconciler.Start(); err != nil {
		log.Fatal("Failed to start withdrawal reconciler", "error", err)
	}

	refresher := settings_refresher.NewWorker(container.Settings, cfg.Workers.SettingsRefreshSchedule, log.Zap())
	if err := refresher.Start(); err != nil {
		log.Fatal("Failed to start settings refresher", "error", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      routes.SetupRoutes(container),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Registered last stops first: workers, then connections, then tracing
	shutdown := graceful.NewShutdownManager(server, 30*time.Second, log)
	shutdown.Register("tracing", graceful.ShutdownFunc(tracingShutdown))
	shutdown.Register("container", container)
	shutdown.Register("settings_refresher", refresher)
	shutdown.Register("withdrawal_reconciler", reconciler)

	go func() {
		log.Info("Starting ledger service", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown.WaitForShutdown()
}
