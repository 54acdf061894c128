// Package withdrawal_reconciler polls exchange providers for the outcome of
// submitted withdrawals.
package withdrawal_reconciler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/pkg/metrics"
)

const workerName = "withdrawal_reconciler"

// Reconciler updates in-flight withdrawals from their provider
type Reconciler interface {
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

// Config controls the schedule and batch size
type Config struct {
	Schedule   string
	BatchSize  int
	JobTimeout time.Duration
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Schedule:   "@every 1m",
		BatchSize:  100,
		JobTimeout: 5 * time.Minute,
	}
}

type Worker struct {
	reconciler Reconciler
	config     Config
	cron       *cron.Cron
	logger     *zap.Logger
}

func NewWorker(reconciler Reconciler, config Config, logger *zap.Logger) *Worker {
	defaults := DefaultConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	return &Worker{
		reconciler: reconciler,
		config:     config,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:     logger,
	}
}

func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.JobTimeout)
		defer cancel()
		w.RunOnce(ctx)
	}); err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Withdrawal reconciler started", zap.String("schedule", w.config.Schedule))
	return nil
}

// RunOnce reconciles one batch of pending withdrawals
func (w *Worker) RunOnce(ctx context.Context) {
	changed, err := w.reconciler.ReconcilePending(ctx, w.config.BatchSize)
	if err != nil {
		metrics.WorkerRunsTotal.WithLabelValues(workerName, "error").Inc()
		w.logger.Error("Failed to reconcile pending withdrawals", zap.Error(err))
		return
	}
	metrics.WorkerRunsTotal.WithLabelValues(workerName, "ok").Inc()
	if changed > 0 {
		w.logger.Info("Reconciled pending withdrawals", zap.Int("changed", changed))
	}
}

// Shutdown stops scheduling and waits for a running job or ctx
func (w *Worker) Shutdown(ctx context.Context) error {
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	w.logger.Info("Withdrawal reconciler stopped")
	return nil
}
