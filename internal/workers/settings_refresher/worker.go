// Package settings_refresher reloads finance settings on a schedule.
package settings_refresher

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/pkg/metrics"
)

const workerName = "settings_refresher"

// Refresher reloads a settings snapshot
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Worker struct {
	refresher Refresher
	schedule  string
	timeout   time.Duration
	cron      *cron.Cron
	logger    *zap.Logger
}

func NewWorker(refresher Refresher, schedule string, logger *zap.Logger) *Worker {
	if schedule == "" {
		schedule = "@every 30s"
	}
	return &Worker{
		refresher: refresher,
		schedule:  schedule,
		timeout:   10 * time.Second,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger,
	}
}

func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		w.RunOnce(ctx)
	}); err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Settings refresher started", zap.String("schedule", w.schedule))
	return nil
}

// RunOnce reloads settings; a failure keeps the previous snapshot
func (w *Worker) RunOnce(ctx context.Context) {
	if err := w.refresher.Refresh(ctx); err != nil {
		metrics.WorkerRunsTotal.WithLabelValues(workerName, "error").Inc()
		w.logger.Warn("Failed to refresh finance settings, keeping previous values", zap.Error(err))
		return
	}
	metrics.WorkerRunsTotal.WithLabelValues(workerName, "ok").Inc()
}

func (w *Worker) Shutdown(ctx context.Context) error {
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	w.logger.Info("Settings refresher stopped")
	return nil
}
