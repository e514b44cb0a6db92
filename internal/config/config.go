package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// ErrMissingServiceKey is returned by Validate when SERVICE_ROLE_KEY is unset.
var ErrMissingServiceKey = errors.New("SERVICE_ROLE_KEY is required for background jobs and risk writes")

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Lock      LockConfig
	Jobs      JobsConfig
	Feed      FeedConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"smartbuy-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// DatabaseConfig holds the main SQLite store settings.
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"./data/smartbuy.db"`
}

// AuthConfig holds the shared secrets.
type AuthConfig struct {
	CronSecret     string `envconfig:"CRON_SECRET" default:""`
	ServiceRoleKey string `envconfig:"SERVICE_ROLE_KEY" default:""`
}

// LockConfig selects the job lock backend.
type LockConfig struct {
	Backend      string        `envconfig:"LOCK_BACKEND" default:"sqlite"` // sqlite, postgres, mysql, redis
	SafetyMargin time.Duration `envconfig:"LOCK_SAFETY_MARGIN" default:"60s"`

	PostgresHost     string `envconfig:"LOCK_POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"LOCK_POSTGRES_PORT" default:"5432"`
	PostgresName     string `envconfig:"LOCK_POSTGRES_DB" default:"smartbuy"`
	PostgresUser     string `envconfig:"LOCK_POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"LOCK_POSTGRES_PASS" default:""`
	PostgresSSLMode  string `envconfig:"LOCK_POSTGRES_SSLMODE" default:"disable"`

	MySQLHost     string `envconfig:"LOCK_MYSQL_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"LOCK_MYSQL_PORT" default:"3306"`
	MySQLName     string `envconfig:"LOCK_MYSQL_DB" default:"smartbuy"`
	MySQLUser     string `envconfig:"LOCK_MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"LOCK_MYSQL_PASS" default:""`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"LOCK_REDIS_PREFIX" default:"smartbuy:lock:"`
}

// JobsConfig holds batch sizes, budgets and pluggable behavior of the background jobs.
type JobsConfig struct {
	PriceTrackerBatchSize  int           `envconfig:"PRICE_TRACKER_BATCH_SIZE" default:"100"`
	PriceTrackerMaxBatches int           `envconfig:"PRICE_TRACKER_MAX_BATCHES" default:"10"`
	PriceTrackerBudget     time.Duration `envconfig:"PRICE_TRACKER_BUDGET" default:"50s"`

	AlertBatchSize       int           `envconfig:"ALERT_BATCH_SIZE" default:"100"`
	AlertEvaluatorBudget time.Duration `envconfig:"ALERT_EVALUATOR_BUDGET" default:"50s"`
	AlertRepeatPolicy    string        `envconfig:"ALERT_REPEAT_POLICY" default:"after_window"` // after_window, on_offer_change

	PriceCheckMode string `envconfig:"PRICE_CHECK_MODE" default:"noop"` // noop, simulated
	PriceCheckSeed int64  `envconfig:"PRICE_CHECK_SEED" default:"1"`

	RiskHeuristicsPath string `envconfig:"RISK_HEURISTICS_PATH" default:""`
}

// FeedConfig holds recommendation feed settings.
type FeedConfig struct {
	DiscoveryLimit int `envconfig:"FEED_DISCOVERY_LIMIT" default:"12"`
}

// NotifyConfig selects the notification dispatcher.
type NotifyConfig struct {
	Dispatcher   string `envconfig:"NOTIFY_DISPATCHER" default:"log"` // log, redis
	RedisChannel string `envconfig:"NOTIFY_REDIS_CHANNEL" default:"smartbuy:notifications"`
}

// SchedulerConfig holds the in-process cron settings.
type SchedulerConfig struct {
	Enabled            bool   `envconfig:"SCHEDULER_ENABLED" default:"false"`
	PriceTrackerCron   string `envconfig:"PRICE_TRACKER_CRON" default:"*/15 * * * *"`
	AlertEvaluatorCron string `envconfig:"ALERT_EVALUATOR_CRON" default:"*/5 * * * *"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// PostgresDSN returns the PostgreSQL connection string.
func (l *LockConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		l.PostgresUser, l.PostgresPassword, l.PostgresHost, l.PostgresPort, l.PostgresName, l.PostgresSSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (l *LockConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		l.MySQLUser, l.MySQLPassword, l.MySQLHost, l.MySQLPort, l.MySQLName)
}

// RedisAddress returns the Redis address in host:port format.
func (l *LockConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", l.RedisHost, l.RedisPort)
}

// TTL returns the lock TTL for a job with the given budget.
func (l *LockConfig) TTL(budget time.Duration) time.Duration {
	return budget + l.SafetyMargin
}

// Validate checks settings that must be present before serving.
func (c *Config) Validate() error {
	if c.Auth.ServiceRoleKey == "" {
		return ErrMissingServiceKey
	}
	if c.Lock.SafetyMargin <= 0 {
		return fmt.Errorf("LOCK_SAFETY_MARGIN must be positive, got %s", c.Lock.SafetyMargin)
	}
	if c.Jobs.PriceTrackerBatchSize <= 0 || c.Jobs.PriceTrackerMaxBatches <= 0 || c.Jobs.AlertBatchSize <= 0 {
		return errors.New("job batch sizes must be positive")
	}
	switch c.Jobs.AlertRepeatPolicy {
	case "after_window", "on_offer_change":
	default:
		return fmt.Errorf("unknown ALERT_REPEAT_POLICY %q", c.Jobs.AlertRepeatPolicy)
	}
	switch c.Jobs.PriceCheckMode {
	case "noop", "simulated":
	default:
		return fmt.Errorf("unknown PRICE_CHECK_MODE %q", c.Jobs.PriceCheckMode)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
