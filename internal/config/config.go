// Package config loads the process-wide, immutable configuration from
// a YAML file plus environment overrides and hands it to every
// component that needs it via constructor injection (fx.Provide).
// Nothing in the rest of the codebase reads viper or the environment
// directly.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object for both the api and worker
// binaries; each only reads the sections it needs.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Job       JobConfig       `mapstructure:"job"`
	Notifiers NotifiersConfig `mapstructure:"notifiers"`
	Reclaimer ReclaimerConfig `mapstructure:"reclaimer"`
}

// LoggerConfig holds logging-specific settings.
type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// HTTPConfig holds HTTP server-specific settings.
type HTTPConfig struct {
	Port    string `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
}

// PostgresConfig holds all settings for the PostgreSQL database connection.
type PostgresConfig struct {
	MasterDSN string     `mapstructure:"master_dsn"`
	Pool      PoolConfig `mapstructure:"pool"`
}

// PoolConfig defines the connection pool settings for the database.
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RabbitMQConfig holds settings for the best-effort integration-event
// bus. DSN is optional: an empty DSN means events are simply dropped
// (see events.NopPublisher).
type RabbitMQConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds all settings for the Redis read-through cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NotifierConfig controls the job dispatch loop: worker pool size and
// polling cadence.
type NotifierConfig struct {
	// Threads is the number of workers in the pool.
	Threads int `mapstructure:"threads"`
	// PollSeconds is the max delay between database polls when the
	// queue appears empty.
	PollSeconds int `mapstructure:"poll_seconds"`
	// Owner is this fleet instance's claim identifier. Empty means
	// "generate one at startup" (see postgres.NewDatabaseJobQueue).
	Owner string `mapstructure:"owner"`
}

// JobConfig controls the retry policy applied by the notifier.
type JobConfig struct {
	// RetrySeconds is the delay before a retry successor becomes
	// eligible for claim.
	RetrySeconds int `mapstructure:"retry_seconds"`
	// MaxRetryAttempts is the initial retries_remaining on a fresh job.
	MaxRetryAttempts int `mapstructure:"max_retry_attempts"`
}

// NotifiersConfig selects and configures the delivery Provider.
type NotifiersConfig struct {
	// Provider selects the Provider implementation: "console" or "smtp".
	Provider string      `mapstructure:"provider"`
	Email    EmailConfig `mapstructure:"email"`
}

// EmailConfig holds SMTP settings for the email provider.
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// ReclaimerConfig controls the optional orphaned-claim sweeper.
type ReclaimerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	OrphanAfter  time.Duration `mapstructure:"orphan_after"`
}

// NewConfig parses the YAML file for SERVICE_ENV (defaulting to
// "development") and environment variable overrides into a Config.
func NewConfig() (*Config, error) {
	env := os.Getenv("SERVICE_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")

	v.SetDefault("logger.level", "info")
	v.SetDefault("http.port", ":8080")
	v.SetDefault("http.gin_mode", "release")
	v.SetDefault("notifier.threads", 1)
	v.SetDefault("notifier.poll_seconds", 60)
	v.SetDefault("job.retry_seconds", 300)
	v.SetDefault("job.max_retry_attempts", 3)
	v.SetDefault("notifiers.provider", "console")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("reclaimer.enabled", false)
	v.SetDefault("reclaimer.interval", 5*time.Minute)
	v.SetDefault("reclaimer.orphan_after", 30*time.Minute)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s config: %w", env, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}
