package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"levitas/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Liquidation   LiquidationConfig
	Chain         ChainConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"levitas"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

// LiquidationConfig holds the protocol thresholds. All scattered per-callsite
// tolerances are consolidated here: the epsilon below is the single deliberate
// allowance for floating-point rounding in upstream decimal conversions.
type LiquidationConfig struct {
	Threshold        float64 `envconfig:"LIQUIDATION_THRESHOLD" default:"120"`
	ThresholdEpsilon float64 `envconfig:"LIQUIDATION_THRESHOLD_EPSILON" default:"0.25"`
	WarningThreshold float64 `envconfig:"LIQUIDATION_WARNING_THRESHOLD" default:"125"`
	BonusRate        float64 `envconfig:"LIQUIDATION_BONUS_RATE" default:"0.05"`
}

// ThresholdDec returns the liquidation threshold as a decimal percentage
func (c LiquidationConfig) ThresholdDec() decimal.Decimal {
	return decimal.NewFromFloat(c.Threshold)
}

// EffectiveThreshold returns threshold + epsilon, the CR at or below which a
// vault is liquidatable
func (c LiquidationConfig) EffectiveThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.Threshold).Add(decimal.NewFromFloat(c.ThresholdEpsilon))
}

// WarningDec returns the at-risk threshold as a decimal percentage
func (c LiquidationConfig) WarningDec() decimal.Decimal {
	return decimal.NewFromFloat(c.WarningThreshold)
}

// BonusRateDec returns the liquidator bonus rate as a decimal fraction
func (c LiquidationConfig) BonusRateDec() decimal.Decimal {
	return decimal.NewFromFloat(c.BonusRate)
}

// ChainConfig configures the simulated external ledger and oracle
type ChainConfig struct {
	BVIXAddress       string  `envconfig:"BVIX_ADDRESS" default:"0x75298e29fE21a5dcEFBe96988DdA957d421dc55C"`
	EVIXAddress       string  `envconfig:"EVIX_ADDRESS" default:"0x7066700CAf442501B308fAe34d5919091e1b2B5d"`
	BVIXMintRedeem    string  `envconfig:"BVIX_MINT_REDEEM_ADDRESS" default:"0xa0133C6380bf9618e97Ab9a855aF2035e9498829"`
	EVIXMintRedeem    string  `envconfig:"EVIX_MINT_REDEEM_ADDRESS" default:"0x1CA8eC26c0451Ca0b88cEa2c6B0E10267505327a"`
	BVIXInitialPrice  string  `envconfig:"BVIX_INITIAL_PRICE" default:"42.15"`
	EVIXInitialPrice  string  `envconfig:"EVIX_INITIAL_PRICE" default:"37.98"`
	RequestsPerSecond float64 `envconfig:"CHAIN_RATE_LIMIT_RPS" default:"50"`
	Burst             int     `envconfig:"CHAIN_RATE_LIMIT_BURST" default:"100"`
}

// MintRedeemAddress returns the mint/redeem contract address for a token
// type ("bvix"/"evix"); empty for unknown tokens
func (c ChainConfig) MintRedeemAddress(token string) string {
	switch token {
	case "bvix":
		return c.BVIXMintRedeem
	case "evix":
		return c.EVIXMintRedeem
	}
	return ""
}

// PostgresConfig configures the optional persistent ledger backend.
// Disabled when Host is empty; the in-memory ledger is used instead.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"levitas"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"levitas"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig configures the optional history store backend and liquidation
// locks. Disabled when Host is empty; in-memory fallbacks are used instead.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClickHouseConfig configures the optional liquidation archive.
// Disabled when Host is empty.
type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"levitas"`
}

func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig configures the optional liquidation event feed.
// Disabled when no brokers are set; events go to a no-op publisher.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	ScannerEnabled  bool          `envconfig:"WORKER_SCANNER_ENABLED" default:"true"`
	ScannerInterval time.Duration `envconfig:"WORKER_SCANNER_INTERVAL" default:"30s"`
}

// Load reads configuration from the environment, with .env support for
// local development
func Load() (*Config, error) {
	// .env is optional; ignore the error when absent
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process environment config")
	}

	return &cfg, nil
}
