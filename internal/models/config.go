package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Ledger     LedgerConfig
	Settlement SettlementConfig
	Lock       LockConfig
	Pricing    PricingConfig
	Listener   ListenerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ServerConfig holds the webhook listener HTTP settings
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	// webhook requests per second and burst; zero rps disables limiting
	RateLimit float64
	RateBurst int
}

// LedgerConfig holds money-movement policy
type LedgerConfig struct {
	CurrenciesFile       string
	SwapFeeRate          decimal.Decimal
	AllowAdjustmentClamp bool
	MaxRetries           int
}

// SettlementConfig holds payment processor settings
type SettlementConfig struct {
	IpnSecret   string
	ApiKey      string
	ApiUrl      string
	CallbackUrl string
	Timeout     time.Duration
}

// LockConfig selects and tunes the per-user lock. An empty RedisAddr keeps
// locking in-process.
type LockConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDb       int
	Ttl           time.Duration
	RetryInterval time.Duration
	RetryTimes    int
}

// PricingConfig holds price oracle settings
type PricingConfig struct {
	CacheTtl time.Duration
}

// ListenerConfig tunes the deposit status poller. It only runs when the
// processor API key is configured.
type ListenerConfig struct {
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	BatchSize       int
	Concurrency     int
}
