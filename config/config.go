package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"wagerledger/database"
	"wagerledger/payout"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Connection pool sizing; zero keeps the driver default
	DatabaseMaxConns          int32         `env:"DATABASE_MAX_CONNS" envDefault:"20"`
	DatabaseMinConns          int32         `env:"DATABASE_MIN_CONNS" envDefault:"2"`
	DatabaseMaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"1h"`
	DatabaseMaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	DatabaseHealthCheckPeriod time.Duration `env:"DATABASE_HEALTH_CHECK_PERIOD" envDefault:"30s"`

	// Lock stores, one address per independent Redis node
	RedisAddrs    []string `env:"REDIS_ADDRS" envSeparator:","`
	RedisPassword string   `env:"REDIS_PASSWORD"`

	// Lock behaviour
	LockTTL          time.Duration `env:"LOCK_TTL" envDefault:"5s"`
	LockRetryCount   int           `env:"LOCK_RETRY_COUNT" envDefault:"0"`
	LockRetryDelay   time.Duration `env:"LOCK_RETRY_DELAY" envDefault:"50ms"`
	LockTimeout      time.Duration `env:"LOCK_TIMEOUT" envDefault:"0s"`
	LockStoreTimeout time.Duration `env:"LOCK_STORE_TIMEOUT" envDefault:"50ms"`

	// Stake limits, per request
	MinStake decimal.Decimal `env:"MIN_STAKE" envDefault:"0.00000001"`
	MaxStake decimal.Decimal `env:"MAX_STAKE" envDefault:"1000000"`

	// History paging
	HistoryDefaultLimit int `env:"HISTORY_DEFAULT_LIMIT" envDefault:"20"`
	HistoryMaxLimit     int `env:"HISTORY_MAX_LIMIT" envDefault:"100"`

	// House edge table; the embedded default is used when no file is given
	HouseEdgeFile string            `env:"HOUSE_EDGE_FILE"`
	HouseEdges    *payout.EdgeTable `env:"-"`

	// NATS configuration
	NATSServers string `env:"NATS_SERVERS" envDefault:"nats://nats:4222"`
	NATSEnabled bool   `env:"NATS_ENABLED" envDefault:"false"`

	// Discord big-win announcements; disabled without a token
	DiscordToken             string          `env:"DISCORD_TOKEN"`
	DiscordAnnounceChannelID string          `env:"DISCORD_ANNOUNCE_CHANNEL_ID"`
	BigWinMultiplier         decimal.Decimal `env:"BIG_WIN_MULTIPLIER" envDefault:"100"`

	// Metrics
	OTelEnabled          bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelServiceName      string `env:"OTEL_SERVICE_NAME" envDefault:"wagerledger"`
	OTelExporterType     string `env:"OTEL_EXPORTER_TYPE" envDefault:"stdout"`
	OTelOTLPEndpoint     string `env:"OTEL_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelExportIntervalMS int    `env:"OTEL_EXPORT_INTERVAL_MS" envDefault:"10000"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Load reads configuration without touching the global instance
func Load() (*Config, error) {
	return load()
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// GetDatabasePoolOptions returns the pool sizing for NewConnection
func (c *Config) GetDatabasePoolOptions() database.PoolOptions {
	return database.PoolOptions{
		MaxConns:          c.DatabaseMaxConns,
		MinConns:          c.DatabaseMinConns,
		MaxConnLifetime:   c.DatabaseMaxConnLifetime,
		MaxConnIdleTime:   c.DatabaseMaxConnIdleTime,
		HealthCheckPeriod: c.DatabaseHealthCheckPeriod,
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from .env and environment variables
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	edges, err := LoadHouseEdges(config.HouseEdgeFile)
	if err != nil {
		return nil, err
	}
	config.HouseEdges = edges

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Environment != "test" {
		// Validate required configuration
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		if len(c.RedisAddrs) == 0 {
			return errors.New("REDIS_ADDRS is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return errors.New("DATABASE_NAME cannot be empty when provided")
		}
	}

	if c.DatabaseMaxConns < 0 || c.DatabaseMinConns < 0 {
		return fmt.Errorf("DATABASE_MAX_CONNS and DATABASE_MIN_CONNS cannot be negative, got %d and %d", c.DatabaseMaxConns, c.DatabaseMinConns)
	}
	if c.DatabaseMaxConns > 0 && c.DatabaseMinConns > c.DatabaseMaxConns {
		return fmt.Errorf("DATABASE_MIN_CONNS %d exceeds DATABASE_MAX_CONNS %d", c.DatabaseMinConns, c.DatabaseMaxConns)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	if c.LockRetryCount < 0 {
		return fmt.Errorf("LOCK_RETRY_COUNT cannot be negative, got %d", c.LockRetryCount)
	}
	if !c.MinStake.IsPositive() {
		return fmt.Errorf("MIN_STAKE must be positive, got %s", c.MinStake)
	}
	if c.MaxStake.LessThan(c.MinStake) {
		return fmt.Errorf("MAX_STAKE %s is below MIN_STAKE %s", c.MaxStake, c.MinStake)
	}
	if c.HistoryMaxLimit < 1 {
		return fmt.Errorf("HISTORY_MAX_LIMIT must be at least 1, got %d", c.HistoryMaxLimit)
	}
	if c.HistoryDefaultLimit < 1 || c.HistoryDefaultLimit > c.HistoryMaxLimit {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be within [1, %d], got %d", c.HistoryMaxLimit, c.HistoryDefaultLimit)
	}
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	edges, err := LoadHouseEdges("")
	if err != nil {
		panic(fmt.Sprintf("embedded house edge table is invalid: %v", err))
	}
	return &Config{
		LockTTL:             5 * time.Second,
		LockRetryDelay:      50 * time.Millisecond,
		LockStoreTimeout:    50 * time.Millisecond,
		MinStake:            decimal.RequireFromString("0.00000001"),
		MaxStake:            decimal.NewFromInt(1_000_000),
		HistoryDefaultLimit: 20,
		HistoryMaxLimit:     100,
		HouseEdges:          edges,
		BigWinMultiplier:    decimal.NewFromInt(100),
		OTelServiceName:     "wagerledger",
		Environment:         "test",
		LogLevel:            "debug",
	}
}
