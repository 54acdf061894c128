package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/ledger_service/internal/api/handlers"
	"github.com/rail-service/ledger_service/internal/api/middleware"
	"github.com/rail-service/ledger_service/internal/infrastructure/cache"
	"github.com/rail-service/ledger_service/internal/infrastructure/di"
	"github.com/rail-service/ledger_service/pkg/idempotency"
	"github.com/rail-service/ledger_service/pkg/tracing"
)

const version = "1.0.0"

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	cfg := container.Config

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	checks := make(map[string]handlers.Checker)
	for name, check := range container.HealthChecks() {
		checks[name] = check
	}
	healthHandlers := handlers.NewHealthHandlers(checks, version, container.Logger)
	financeHandlers := handlers.NewFinanceHandlers(
		container.TransferEngine,
		container.WithdrawalEngine,
		container.WalletService,
		container.Settings,
		container.Logger,
	)
	adminHandlers := handlers.NewAdminFinanceHandlers(
		container.WithdrawalEngine,
		container.TransferEngine,
		container.WalletService,
		container.Logger,
	)

	// Health checks (no identity required)
	router.GET("/health", healthHandlers.Health)
	router.GET("/metrics", healthHandlers.Metrics)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identity())
	v1.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))
	if container.Redis != nil {
		ttl := time.Duration(cfg.Server.IdempotencyTTL) * time.Second
		v1.Use(idempotency.Middleware(
			cache.NewIdempotencyStore(container.Redis),
			ttl,
			callerScope,
			container.Logger.Zap(),
		))
	}

	finance := v1.Group("/finance")
	{
		finance.POST("/transfers", financeHandlers.CreateTransfer)
		finance.POST("/withdrawals", financeHandlers.CreateWithdrawal)
		finance.POST("/withdrawals/quote", financeHandlers.QuoteWithdrawal)
		finance.GET("/wallets", financeHandlers.ListWallets)
		finance.GET("/wallets/:type/:currency/deposit-address", financeHandlers.GetDepositAddress)
		finance.GET("/transactions/:id", financeHandlers.GetTransaction)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminOnly())
	{
		admin.POST("/withdrawals/:id/approve", adminHandlers.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminHandlers.RejectWithdrawal)
		admin.POST("/withdrawals/:id/reconcile", adminHandlers.ReconcileWithdrawal)
		admin.POST("/transfers/:id/complete", adminHandlers.CompleteTransfer)
		admin.POST("/wallets/:id/deactivate", adminHandlers.DeactivateWallet)
	}

	return router
}

// callerScope keeps idempotency keys of different callers apart
func callerScope(c *gin.Context) string {
	return c.GetHeader(middleware.HeaderUserID)
}
