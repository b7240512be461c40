// Package config provides configuration management for the validation
// service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/datasieve/datasieve/internal/broker/rabbit"
	"github.com/datasieve/datasieve/internal/objectstore/miniostore"
	"github.com/datasieve/datasieve/internal/storage/mysql"
	"github.com/datasieve/datasieve/internal/storage/postgres"
)

// Config represents the service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	App         AppConfig         `yaml:"app"`
	Broker      rabbit.Config     `yaml:"broker"`
	ObjectStore miniostore.Config `yaml:"object_store"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
}

// AppConfig holds the routing keys and bucket names the pipeline uses.
type AppConfig struct {
	SourceRouter     string `yaml:"source_router"`
	SourceBucket     string `yaml:"source_bucket"`
	ValidateBucket   string `yaml:"validate_bucket"`
	QuarantineBucket string `yaml:"quarantine_bucket"`
}

// StorageConfig represents storage backend configuration.
type StorageConfig struct {
	Type       string          `yaml:"type"` // memory, postgres, mysql
	PostgreSQL postgres.Config `yaml:"postgres"`
	MySQL      mysql.Config    `yaml:"mysql"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
	// File enables rotated file output alongside stdout when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		App: AppConfig{
			SourceRouter:     "app.source_router",
			SourceBucket:     "gold",
			ValidateBucket:   "validated",
			QuarantineBucket: "quarantine",
		},
		Broker:      rabbit.DefaultConfig(),
		ObjectStore: miniostore.DefaultConfig(),
		Storage: StorageConfig{
			Type:       "memory",
			PostgreSQL: postgres.DefaultConfig(),
			MySQL:      mysql.DefaultConfig(),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables override file configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 -- path is from command-line argument, user-controlled input is expected
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config file
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. The RABBITMQ_*
// and MINIO_* names match what the official container images use, so one
// compose file can configure both sides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATASIEVE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("DATASIEVE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DATASIEVE_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("DATASIEVE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DATASIEVE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DATASIEVE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	// Broker overrides
	if v := os.Getenv("RABBITMQ_HOST"); v != "" {
		c.Broker.Host = v
	}
	if v := os.Getenv("RABBITMQ_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Broker.Port = port
		}
	}
	if v := os.Getenv("RABBITMQ_DEFAULT_USER"); v != "" {
		c.Broker.Username = v
	}
	if v := os.Getenv("RABBITMQ_DEFAULT_PASS"); v != "" {
		c.Broker.Password = v
	}

	// Object store overrides
	if v := os.Getenv("MINIO_HOST"); v != "" {
		c.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("MINIO_ROOT_USER"); v != "" {
		c.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("MINIO_ROOT_PASSWORD"); v != "" {
		c.ObjectStore.SecretKey = v
	}

	// PostgreSQL overrides
	if v := os.Getenv("DATASIEVE_PG_HOST"); v != "" {
		c.Storage.PostgreSQL.Host = v
	}
	if v := os.Getenv("DATASIEVE_PG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Storage.PostgreSQL.Port = port
		}
	}
	if v := os.Getenv("DATASIEVE_PG_DATABASE"); v != "" {
		c.Storage.PostgreSQL.Database = v
	}
	if v := os.Getenv("DATASIEVE_PG_USER"); v != "" {
		c.Storage.PostgreSQL.Username = v
	}
	if v := os.Getenv("DATASIEVE_PG_PASSWORD"); v != "" {
		c.Storage.PostgreSQL.Password = v
	}
	if v := os.Getenv("DATASIEVE_PG_SSLMODE"); v != "" {
		c.Storage.PostgreSQL.SSLMode = v
	}

	// MySQL overrides
	if v := os.Getenv("DATASIEVE_MYSQL_HOST"); v != "" {
		c.Storage.MySQL.Host = v
	}
	if v := os.Getenv("DATASIEVE_MYSQL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Storage.MySQL.Port = port
		}
	}
	if v := os.Getenv("DATASIEVE_MYSQL_DATABASE"); v != "" {
		c.Storage.MySQL.Database = v
	}
	if v := os.Getenv("DATASIEVE_MYSQL_USER"); v != "" {
		c.Storage.MySQL.Username = v
	}
	if v := os.Getenv("DATASIEVE_MYSQL_PASSWORD"); v != "" {
		c.Storage.MySQL.Password = v
	}
	if v := os.Getenv("DATASIEVE_MYSQL_TLS"); v != "" {
		c.Storage.MySQL.TLS = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validStorageTypes := map[string]bool{
		"memory":   true,
		"postgres": true,
		"mysql":    true,
	}
	if !validStorageTypes[c.Storage.Type] {
		return fmt.Errorf("invalid storage type: %s", c.Storage.Type)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Broker.Exchange == "" {
		return fmt.Errorf("broker exchange must not be empty")
	}
	if c.Broker.QueueTTLMillis < 0 {
		return fmt.Errorf("invalid queue TTL: %d", c.Broker.QueueTTLMillis)
	}

	for name, v := range map[string]string{
		"source_router":     c.App.SourceRouter,
		"source_bucket":     c.App.SourceBucket,
		"validate_bucket":   c.App.ValidateBucket,
		"quarantine_bucket": c.App.QuarantineBucket,
	} {
		if v == "" {
			return fmt.Errorf("app.%s must not be empty", name)
		}
	}

	return nil
}

// Address returns the server address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
