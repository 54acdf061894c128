package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rail-service/ledger_service/pkg/logger"
)

// Shutdowner is a component stopped after the HTTP server drains
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc adapts a function to Shutdowner
type ShutdownFunc func(ctx context.Context) error

// Shutdown calls f
func (f ShutdownFunc) Shutdown(ctx context.Context) error { return f(ctx) }

type namedShutdowner struct {
	name string
	s    Shutdowner
}

// ShutdownManager stops the server first, then the registered components
// in reverse registration order.
type ShutdownManager struct {
	server      *http.Server
	shutdowners []namedShutdowner
	timeout     time.Duration
	logger      *logger.Logger
}

func NewShutdownManager(server *http.Server, timeout time.Duration, logger *logger.Logger) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		server:  server,
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a component; later registrations stop first
func (sm *ShutdownManager) Register(name string, s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, namedShutdowner{name: name, s: s})
}

// WaitForShutdown blocks until SIGINT/SIGTERM and then shuts down
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	sm.logger.Info("Shutting down gracefully...", "signal", sig.String())
	sm.Shutdown(context.Background())
}

// Shutdown drains the HTTP server and stops every registered component
func (sm *ShutdownManager) Shutdown(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for i := len(sm.shutdowners) - 1; i >= 0; i-- {
		s := sm.shutdowners[i]
		if err := s.s.Shutdown(ctx); err != nil {
			sm.logger.Warn("Component shutdown error", "component", s.name, "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
