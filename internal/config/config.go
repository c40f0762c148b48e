// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for both binaries: the HTTP gateway that
// creates and settles payment orders, and the ledger worker that relays ledger events.
package config

import (
	"errors"
	"strings"
	"time"
)

const (
	// ComponentAPIGateway identifies the public HTTP binary
	ComponentAPIGateway = "api_gateway"
	// ComponentLedgerWorker identifies the background worker binary
	ComponentLedgerWorker = "ledger_worker"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Epay        EpayConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Order       OrderConfig
	Ledger      LedgerConfig
	Tracing     TracingConfig
	Metrics     MetricsConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env       string
	Name      string
	Component string // api_gateway or ledger_worker
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	LedgerEventTopic  string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains Redis configuration used by the order rate limiter
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// OutboxConfig contains outbox relay configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// EpayConfig contains the payment gateway merchant settings
type EpayConfig struct {
	MerchantID  string // pid
	MerchantKey string // shared signing secret, never leaves the service
	SubmitURL   string // gateway page the browser is redirected to
	NotifyURL   string // server-side asynchronous callback
	ReturnURL   string // browser return page
	SignScheme  string // "append" or "ampersand"
	ProductName string
}

// AuthConfig contains bearer token validation settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string // optional
	Audience  string // optional
}

// RateLimitConfig contains request throttling settings
type RateLimitConfig struct {
	OrdersPerWindow int
	OrderWindow     time.Duration
	CallbackRPS     float64
	CallbackBurst   int
}

// OrderConfig contains order lifecycle settings
type OrderConfig struct {
	OutTradeNoPrefix    string
	PendingTTL          time.Duration
	ExpirySweepInterval time.Duration
	RequireCatalogItem  bool
	RecentLimit         int
}

// LedgerConfig contains wallet policy settings
type LedgerConfig struct {
	InitialBalance            int64
	DailyBonus                int64
	UnlockThreshold           int64
	BonusCountsTowardRecharge bool
	Timezone                  string // calendar used for the daily bonus
}

// TracingConfig contains OpenTelemetry exporter settings. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.LedgerEventTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_LEDGER_EVENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Order and Ledger policy
	if c.Order.OutTradeNoPrefix == "" {
		validationErrors = append(validationErrors, "ORDER_OUT_TRADE_NO_PREFIX is required")
	}
	if c.Order.PendingTTL <= 0 {
		validationErrors = append(validationErrors, "ORDER_PENDING_TTL must be greater than 0")
	}
	if c.Order.ExpirySweepInterval <= 0 {
		validationErrors = append(validationErrors, "ORDER_EXPIRY_SWEEP_INTERVAL must be greater than 0")
	}
	if c.Ledger.InitialBalance < 0 {
		validationErrors = append(validationErrors, "LEDGER_INITIAL_BALANCE must not be negative")
	}
	if c.Ledger.DailyBonus <= 0 {
		validationErrors = append(validationErrors, "LEDGER_DAILY_BONUS must be greater than 0")
	}
	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		validationErrors = append(validationErrors, "LEDGER_TIMEZONE must be a valid IANA zone")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		validationErrors = append(validationErrors, "TRACING_SAMPLE_RATIO must be between 0 and 1")
	}

	if c.Application.Component == ComponentAPIGateway {
		validationErrors = append(validationErrors, c.validateGateway()...)
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

// validateGateway checks settings only the HTTP gateway needs
func (c *Config) validateGateway() []string {
	var validationErrors []string

	if c.Epay.MerchantID == "" {
		validationErrors = append(validationErrors, "EPAY_MERCHANT_ID is required")
	}
	if c.Epay.MerchantKey == "" {
		validationErrors = append(validationErrors, "EPAY_MERCHANT_KEY is required")
	}
	if c.Epay.SubmitURL == "" {
		validationErrors = append(validationErrors, "EPAY_SUBMIT_URL is required")
	}
	if c.Epay.NotifyURL == "" {
		validationErrors = append(validationErrors, "EPAY_NOTIFY_URL is required")
	}
	if c.Epay.SignScheme != "append" && c.Epay.SignScheme != "ampersand" {
		validationErrors = append(validationErrors, "EPAY_SIGN_SCHEME must be one of append, ampersand")
	}
	if c.Auth.JWTSecret == "" {
		validationErrors = append(validationErrors, "AUTH_JWT_SECRET is required")
	}
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.RateLimit.OrdersPerWindow <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_ORDERS_PER_WINDOW must be greater than 0")
	}
	if c.RateLimit.OrderWindow <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_ORDER_WINDOW must be greater than 0")
	}
	if c.RateLimit.CallbackRPS <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_CALLBACK_RPS must be greater than 0")
	}

	return validationErrors
}
