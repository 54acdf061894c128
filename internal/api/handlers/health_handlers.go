package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rail-service/ledger_service/pkg/logger"
)

// HealthCheck is the outcome of one dependency probe
type HealthCheck struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// Checker probes one dependency
type Checker func(ctx context.Context) error

// HealthHandlers serves liveness and metrics endpoints
type HealthHandlers struct {
	checks    map[string]Checker
	version   string
	startTime time.Time
	logger    *logger.Logger
}

// NewHealthHandlers creates health handlers over the named dependency checks
func NewHealthHandlers(checks map[string]Checker, version string, logger *logger.Logger) *HealthHandlers {
	return &HealthHandlers{
		checks:    checks,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Health handles GET /health
func (h *HealthHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]HealthCheck, len(names))
	overall := "healthy"
	for _, name := range names {
		start := time.Now()
		check := HealthCheck{Status: "healthy"}
		if err := h.checks[name](ctx); err != nil {
			check.Status = "unhealthy"
			check.Message = err.Error()
			overall = "unhealthy"
			h.logger.Warn("Health check failed", "check", name, "error", err)
		}
		check.Latency = time.Since(start)
		checks[name] = check
	}

	statusCode := http.StatusOK
	if overall != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime),
		Checks:    checks,
	})
}

// Metrics handles GET /metrics
func (h *HealthHandlers) Metrics(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}
