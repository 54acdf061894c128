package di

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/adapters/engine"
	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/domain/services/pricing"
	"github.com/rail-service/ledger_service/internal/infrastructure/config"
	"github.com/rail-service/ledger_service/internal/infrastructure/database"
	"github.com/rail-service/ledger_service/internal/infrastructure/events"
	infrarepos "github.com/rail-service/ledger_service/internal/infrastructure/repositories"
	"github.com/rail-service/ledger_service/internal/infrastructure/repositories/memory"
)

// storageServices is the persistence side of the container
type storageServices struct {
	db         *sqlx.DB
	store      repositories.Store
	currencies repositories.CurrencyRepository
	settings   repositories.SettingsRepository
}

func buildStorage(cfg *config.Config, logger *zap.Logger) (*storageServices, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return buildMemoryStorage(cfg.Storage.CatalogFile, logger)
	case "postgres", "":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Storage.AutoMigrate {
		if err := database.RunMigrations(db.DB, cfg.Storage.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &storageServices{
		db:         db,
		store:      infrarepos.NewStore(db, logger),
		currencies: infrarepos.NewCurrencyRepository(db),
		settings:   infrarepos.NewSettingsRepository(db),
	}, nil
}

// memorySeed is the catalog file format of the memory driver
type memorySeed struct {
	Currencies []*entities.Currency `json:"currencies"`
	Settings   map[string]string    `json:"settings"`
	Users      []*entities.User     `json:"users"`
}

func buildMemoryStorage(catalogFile string, logger *zap.Logger) (*storageServices, error) {
	var seed memorySeed
	if catalogFile != "" {
		data, err := os.ReadFile(catalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", catalogFile, err)
		}
	}

	store := memory.NewStore()
	for _, u := range seed.Users {
		store.AddUser(u)
	}

	logger.Warn("Using in-memory storage, balances are lost on restart",
		zap.Int("currencies", len(seed.Currencies)),
		zap.Int("users", len(seed.Users)))

	return &storageServices{
		store:      store,
		currencies: memory.NewCatalog(seed.Currencies...),
		settings:   memory.NewSettings(seed.Settings),
	}, nil
}

// buildExchange creates the gateway client and registers the configured provider
func (c *Container) buildExchange(providerID exchange.ProviderID) (*exchange.GatewayClient, error) {
	cfg := c.Config.Exchange
	var bans exchange.BanRecorder
	if c.bans != nil {
		bans = c.bans
	}

	client := exchange.NewGatewayClient(exchange.Config{
		BaseURL:           cfg.BaseURL,
		Exchange:          cfg.Exchange,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.TimeoutDuration(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, bans, c.Logger.Zap())

	provider, err := exchange.NewProvider(providerID, client, c.Logger.Zap())
	if err != nil {
		return nil, err
	}
	c.Providers = exchange.NewRegistry(provider)
	return client, nil
}

func buildMatchingEngine(cfg *config.Config, logger *zap.Logger) pricing.MatchingEngine {
	if !cfg.Ledger.EcosystemEnabled {
		return pricing.NoopMatchingEngine{}
	}
	return engine.NewClient(engine.Config{
		BaseURL: cfg.Engine.BaseURL,
		Timeout: time.Duration(cfg.Engine.Timeout) * time.Second,
	}, logger)
}

func buildEvents(cfg config.EventsConfig, logger *zap.Logger) EventPublisher {
	if !cfg.Enabled {
		return events.NewLogPublisher(logger)
	}
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg, logger), logger)
}
