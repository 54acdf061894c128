package withdrawal_reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) ReconcilePending(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func TestRunOnce_UsesBatchSize(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("ReconcilePending", mock.Anything, 25).Return(3, nil).Once()

	w := NewWorker(reconciler, Config{BatchSize: 25}, zap.NewNop())
	w.RunOnce(context.Background())

	reconciler.AssertExpectations(t)
}

func TestRunOnce_ErrorIsLogged(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("ReconcilePending", mock.Anything, 100).Return(0, errors.New("db down")).Once()

	w := NewWorker(reconciler, Config{}, zap.NewNop())
	assert.NotPanics(t, func() { w.RunOnce(context.Background()) })
	reconciler.AssertExpectations(t)
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(new(MockReconciler), Config{}, zap.NewNop())
	assert.Equal(t, DefaultConfig(), w.config)
}

func TestStartAndShutdown(t *testing.T) {
	w := NewWorker(new(MockReconciler), Config{Schedule: "@every 1h"}, zap.NewNop())
	require.NoError(t, w.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Shutdown(ctx))
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := NewWorker(new(MockReconciler), Config{Schedule: "not a schedule"}, zap.NewNop())
	assert.Error(t, w.Start())
}
