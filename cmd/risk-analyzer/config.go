package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the process configuration parsed from environment variables.
// Rule tuning lives in the settings file, not here.
type Config struct {
	// Database; an empty URL runs on the in-memory store
	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxConns     int    `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns     int    `env:"DB_MIN_CONNS" envDefault:"2"`
	DBConnLifetime string `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Redis; empty disables the summary cache
	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"login-security:"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"login-attempts"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" envDefault:"login-risk-analyzer"`

	// Server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// SettingsFile holds security_analysis.* rule settings
	SettingsFile string `env:"SETTINGS_FILE"`

	// EncryptionKey keys the device hash; 32 bytes
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"login_security"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT %d is out of range", c.HTTPPort)
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(c.EncryptionKey))
	}
	if c.KafkaEnabled && len(c.Brokers()) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

// Brokers splits KafkaBrokers on commas, dropping blanks.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
