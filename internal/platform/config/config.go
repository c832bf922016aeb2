package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration. Each section maps to one
// environment prefix so operators can reason about them independently.
type Config struct {
	Server       Server
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Automation   AutomationConfig
	Verification VerificationConfig
	Notification NotificationConfig
	Logging      LoggingConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"TRUSTLANE_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"TRUSTLANE_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	ReadTimeout     time.Duration `env:"TRUSTLANE_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"TRUSTLANE_WRITE_TIMEOUT" envDefault:"15s"`
}

// DatabaseConfig selects the record store. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"DATABASE_TX_TIMEOUT" envDefault:"5s"`
	MigrateOnStart  bool          `env:"DATABASE_MIGRATE_ON_START" envDefault:"true"`
}

// InMemory reports whether no database is configured.
func (d DatabaseConfig) InMemory() bool {
	return d.URL == ""
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the notification event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string      `env:"KAFKA_BROKERS" envSeparator:","`
	NotificationTopic string        `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"trustlane.notifications"`
	Partitions        int32         `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16         `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
	ProduceTimeout    time.Duration `env:"KAFKA_PRODUCE_TIMEOUT" envDefault:"5s"`
}

// Enabled reports whether at least one broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AutomationConfig holds cron specs in robfig/cron format (with seconds).
type AutomationConfig struct {
	Enabled                bool          `env:"AUTOMATION_ENABLED" envDefault:"true"`
	ScoresSpec             string        `env:"AUTOMATION_SCORES_SPEC" envDefault:"0 0 2 * * *"`
	InactivitySpec         string        `env:"AUTOMATION_INACTIVITY_SPEC" envDefault:"0 0 3 * * 0"`
	SuspiciousSpec         string        `env:"AUTOMATION_SUSPICIOUS_SPEC" envDefault:"0 0 * * * *"`
	CompletionSpec         string        `env:"AUTOMATION_COMPLETION_SPEC" envDefault:"0 30 2 * * *"`
	InactivityDays         int           `env:"AUTOMATION_INACTIVITY_DAYS" envDefault:"90"`
	LeaseTTL               time.Duration `env:"AUTOMATION_LEASE_TTL" envDefault:"10m"`
	InactivityDecayPercent int           `env:"AUTOMATION_INACTIVITY_DECAY_PERCENT" envDefault:"10"`
}

type VerificationConfig struct {
	AutoEvalDelay time.Duration `env:"VERIFICATION_AUTO_EVAL_DELAY" envDefault:"0s"`
	QueueSize     int           `env:"VERIFICATION_QUEUE_SIZE" envDefault:"256"`
	Workers       int           `env:"VERIFICATION_WORKERS" envDefault:"2"`
}

type NotificationConfig struct {
	QueueSize       int           `env:"NOTIFICATION_QUEUE_SIZE" envDefault:"1024"`
	Workers         int           `env:"NOTIFICATION_WORKERS" envDefault:"2"`
	RetryMaxElapsed time.Duration `env:"NOTIFICATION_RETRY_MAX_ELAPSED" envDefault:"30s"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// FromEnv loads an optional .env file (path from TRUSTLANE_ENV_FILE, default
// ".env") and parses the environment into a Config.
func FromEnv() (Config, error) {
	path := os.Getenv("TRUSTLANE_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Automation.InactivityDays <= 0:
		return fmt.Errorf("AUTOMATION_INACTIVITY_DAYS must be positive, got %d", c.Automation.InactivityDays)
	case c.Automation.InactivityDecayPercent < 0 || c.Automation.InactivityDecayPercent > 100:
		return fmt.Errorf("AUTOMATION_INACTIVITY_DECAY_PERCENT must be within [0,100], got %d", c.Automation.InactivityDecayPercent)
	case c.Verification.QueueSize <= 0:
		return fmt.Errorf("VERIFICATION_QUEUE_SIZE must be positive, got %d", c.Verification.QueueSize)
	case c.Verification.Workers <= 0:
		return fmt.Errorf("VERIFICATION_WORKERS must be positive, got %d", c.Verification.Workers)
	case c.Notification.QueueSize <= 0:
		return fmt.Errorf("NOTIFICATION_QUEUE_SIZE must be positive, got %d", c.Notification.QueueSize)
	case c.Notification.Workers <= 0:
		return fmt.Errorf("NOTIFICATION_WORKERS must be positive, got %d", c.Notification.Workers)
	}
	return nil
}
