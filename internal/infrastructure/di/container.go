package di

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/domain/services/ledger"
	"github.com/rail-service/ledger_service/internal/domain/services/pricing"
	"github.com/rail-service/ledger_service/internal/domain/services/settings"
	"github.com/rail-service/ledger_service/internal/domain/services/transfer"
	"github.com/rail-service/ledger_service/internal/domain/services/wallet"
	"github.com/rail-service/ledger_service/internal/domain/services/withdrawal"
	"github.com/rail-service/ledger_service/internal/infrastructure/adapters"
	"github.com/rail-service/ledger_service/internal/infrastructure/cache"
	"github.com/rail-service/ledger_service/internal/infrastructure/config"
	"github.com/rail-service/ledger_service/internal/infrastructure/database"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// EventPublisher publishes ledger events and releases its connection on Close
type EventPublisher interface {
	Publish(ctx context.Context, event entities.LedgerEvent) error
	Close() error
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	// DB is nil when the memory storage driver is selected
	DB *sqlx.DB
	// Redis is nil when Redis is unreachable; ban tracking and idempotency
	// are then disabled.
	Redis cache.RedisClient

	Store      repositories.Store
	Currencies repositories.CurrencyRepository
	Settings   *settings.Provider

	Providers *exchange.Registry
	Oracle    *pricing.Oracle
	Chains    *ledger.PrivateLedger
	Email     *adapters.EmailService
	Events    EventPublisher

	TransferEngine   *transfer.Engine
	WithdrawalEngine *withdrawal.Engine
	WalletService    *wallet.Service

	bans    *cache.BanStore
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}
	zapLog := log.Zap()

	storage, err := buildStorage(cfg, zapLog)
	if err != nil {
		return nil, err
	}
	c.DB = storage.db
	c.Store = storage.store
	c.Currencies = storage.currencies
	if storage.db != nil {
		c.addCloser("database", storage.db.Close)
	}

	if redisClient, err := cache.NewRedisClient(cfg.Redis, zapLog); err != nil {
		log.Warn("Redis unavailable, exchange ban tracking and idempotency keys are disabled", "error", err)
	} else {
		c.Redis = redisClient
		c.bans = cache.NewBanStore(redisClient, cfg.Exchange.Exchange, zapLog)
		c.addCloser("redis", redisClient.Close)
	}

	c.Settings = settings.NewProvider(storage.settings, log)
	if err := c.Settings.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load finance settings: %w", err)
	}

	providerID, err := exchange.ParseProviderID(cfg.Exchange.Provider)
	if err != nil {
		c.Close()
		return nil, err
	}
	spot, err := c.buildExchange(providerID)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Oracle = pricing.NewOracle(
		c.Currencies,
		spot,
		c.banChecker(),
		buildMatchingEngine(cfg, zapLog),
		cfg.Ledger.Stablecoin,
		log,
	)
	c.Chains = ledger.NewPrivateLedger(cfg.Ledger.ChainNetworks, log)

	c.Email, err = adapters.NewEmailService(zapLog, adapters.EmailServiceConfig{
		Provider:  cfg.Email.Provider,
		APIKey:    cfg.Email.APIKey,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
		BaseURL:   cfg.Email.BaseURL,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}

	c.Events = buildEvents(cfg.Events, zapLog)
	c.addCloser("events", c.Events.Close)

	c.TransferEngine = transfer.NewEngine(c.Store, c.Currencies, c.Oracle, c.Chains, c.Email, c.Events, log)
	c.WithdrawalEngine = withdrawal.NewEngine(
		c.Store,
		c.Currencies,
		c.Providers,
		withdrawal.DefaultConfig(providerID),
		c.Email,
		c.Events,
		log,
	)
	c.WalletService = wallet.NewService(c.Store, c.Currencies, c.Providers, wallet.Config{DepositProvider: providerID}, zapLog)

	log.Info("Dependency container initialized",
		"storage", cfg.Storage.Driver,
		"provider", providerID,
		"ecosystem_enabled", cfg.Ledger.EcosystemEnabled,
		"redis", c.Redis != nil)
	return c, nil
}

func (c *Container) addCloser(name string, fn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

// banChecker avoids handing the oracle a typed nil
func (c *Container) banChecker() pricing.BanChecker {
	if c.bans == nil {
		return nil
	}
	return c.bans
}

// HealthChecks returns the dependency probes served on /health
func (c *Container) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if c.DB != nil {
		db := c.DB
		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.Ping
	}
	return checks
}

// Close releases connections in reverse order of creation
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(); err != nil {
			c.Logger.Warn("Failed to close dependency", "dependency", c.closers[i].name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.closers = nil
	return firstErr
}

// Shutdown lets the container be registered with the shutdown manager
func (c *Container) Shutdown(ctx context.Context) error {
	return c.Close()
}
