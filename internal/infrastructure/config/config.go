package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
	Exchange    ExchangeConfig `mapstructure:"exchange"`
	Engine      EngineConfig   `mapstructure:"engine"`
	Email       EmailConfig    `mapstructure:"email"`
	Events      EventsConfig   `mapstructure:"events"`
	Workers     WorkerConfig   `mapstructure:"workers"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	IdempotencyTTL  int      `mapstructure:"idempotency_ttl"` // seconds
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver         string `mapstructure:"driver"` // "postgres" or "memory"
	MigrationsPath string `mapstructure:"migrations_path"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	// CatalogFile seeds currencies and settings for the memory driver
	CatalogFile string `mapstructure:"catalog_file"`
}

// LedgerConfig contains settings of the ledger core
type LedgerConfig struct {
	Stablecoin       string            `mapstructure:"stablecoin"`
	ChainNetworks    map[string]string `mapstructure:"chain_networks"` // chain -> network
	EcosystemEnabled bool              `mapstructure:"ecosystem_enabled"`
}

// ExchangeConfig contains the spot exchange gateway configuration
type ExchangeConfig struct {
	Provider          string  `mapstructure:"provider"` // binance, kucoin, xt, kraken
	BaseURL           string  `mapstructure:"base_url"`
	Exchange          string  `mapstructure:"exchange"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"rps"`
	Timeout           int     `mapstructure:"timeout"` // seconds
}

// EngineConfig contains the ecosystem matching engine configuration
type EngineConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

type EmailConfig struct {
	Provider  string `mapstructure:"provider"` // "sendgrid" or "log"
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	BaseURL   string `mapstructure:"base_url"`
}

// EventsConfig contains the ledger event stream configuration
type EventsConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	WriteTimeout int      `mapstructure:"write_timeout"` // seconds
}

// WorkerConfig contains background worker configuration
type WorkerConfig struct {
	WithdrawalReconcileSchedule string `mapstructure:"withdrawal_reconcile_schedule"`
	WithdrawalReconcileBatch    int    `mapstructure:"withdrawal_reconcile_batch"`
	SettingsRefreshSchedule     string `mapstructure:"settings_refresh_schedule"`
	JobTimeout                  int    `mapstructure:"job_timeout"` // seconds
}

// TracingConfig contains OpenTelemetry export configuration
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// TimeoutDuration returns the gateway request timeout
func (c ExchangeConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}
	config.Ledger.ChainNetworks = normalizeChains(config.Ledger.ChainNetworks)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idempotency_ttl", 86400)
	viper.SetDefault("server.rate_limit_per_min", 600)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "ledger_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.query_timeout", 30)
	viper.SetDefault("database.max_retries", 3)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("storage.driver", "postgres")
	viper.SetDefault("storage.migrations_path", "file://migrations")
	viper.SetDefault("storage.auto_migrate", true)

	// Ledger defaults
	viper.SetDefault("ledger.stablecoin", "USDT")
	viper.SetDefault("ledger.ecosystem_enabled", false)
	viper.SetDefault("ledger.chain_networks", map[string]string{})

	// Exchange defaults
	viper.SetDefault("exchange.provider", "binance")
	viper.SetDefault("exchange.base_url", "http://localhost:8090")
	viper.SetDefault("exchange.rps", 10)
	viper.SetDefault("exchange.timeout", 30)

	viper.SetDefault("engine.timeout", 10)

	// Email defaults
	viper.SetDefault("email.provider", "log")
	viper.SetDefault("email.from_email", "no-reply@ledger.local")
	viper.SetDefault("email.from_name", "Ledger")
	viper.SetDefault("email.base_url", "http://localhost:3000")

	viper.SetDefault("events.enabled", false)
	viper.SetDefault("events.topic", "ledger.events")
	viper.SetDefault("events.write_timeout", 10)

	// Worker defaults
	viper.SetDefault("workers.withdrawal_reconcile_schedule", "@every 1m")
	viper.SetDefault("workers.withdrawal_reconcile_batch", 100)
	viper.SetDefault("workers.settings_refresh_schedule", "@every 30s")
	viper.SetDefault("workers.job_timeout", 300)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 0.1)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// Exchange gateway
	if apiKey := os.Getenv("EXCHANGE_API_KEY"); apiKey != "" {
		viper.Set("exchange.api_key", apiKey)
	}
	if baseURL := os.Getenv("EXCHANGE_BASE_URL"); baseURL != "" {
		viper.Set("exchange.base_url", baseURL)
	}
	if provider := os.Getenv("EXCHANGE_PROVIDER"); provider != "" {
		viper.Set("exchange.provider", provider)
	}

	// Email Service
	if sendgridKey := os.Getenv("SENDGRID_API_KEY"); sendgridKey != "" {
		viper.Set("email.api_key", sendgridKey)
		viper.Set("email.provider", "sendgrid")
	}

	// Ledger
	if chainNetworks := os.Getenv("LEDGER_CHAIN_NETWORKS"); chainNetworks != "" {
		if parsed := ParseChainNetworks(chainNetworks); len(parsed) > 0 {
			viper.Set("ledger.chain_networks", parsed)
		}
	}

	// Kafka
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		var list []string
		for _, part := range strings.Split(brokers, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		if len(list) > 0 {
			viper.Set("events.brokers", list)
			viper.Set("events.enabled", true)
		}
	}
}

// ParseChainNetworks parses "ETH=mainnet,BSC=mainnet". Malformed pairs are skipped.
func ParseChainNetworks(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		chain, network, ok := strings.Cut(strings.TrimSpace(pair), "=")
		chain, network = strings.TrimSpace(chain), strings.TrimSpace(network)
		if !ok || chain == "" || network == "" {
			continue
		}
		out[strings.ToUpper(chain)] = network
	}
	return out
}

// viper lowercases map keys read from YAML
func normalizeChains(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for chain, network := range in {
		out[strings.ToUpper(chain)] = network
	}
	return out
}

func validate(config *Config) error {
	switch config.Storage.Driver {
	case "postgres":
		if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
			return fmt.Errorf("database configuration is incomplete")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}

	if config.Ledger.Stablecoin == "" {
		return fmt.Errorf("ledger stablecoin is required")
	}

	if config.Ledger.EcosystemEnabled && config.Engine.BaseURL == "" {
		return fmt.Errorf("engine base_url is required when the ecosystem is enabled")
	}

	if config.Events.Enabled && len(config.Events.Brokers) == 0 {
		return fmt.Errorf("events brokers are required when events are enabled")
	}

	if config.Email.Provider == "sendgrid" && config.Email.APIKey == "" {
		return fmt.Errorf("sendgrid api key is required")
	}

	return nil
}
