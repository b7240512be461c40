package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.App.SourceRouter != "app.source_router" {
		t.Errorf("unexpected source router: %s", cfg.App.SourceRouter)
	}
	if cfg.App.SourceBucket != "gold" || cfg.App.ValidateBucket != "validated" || cfg.App.QuarantineBucket != "quarantine" {
		t.Errorf("unexpected bucket defaults: %+v", cfg.App)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected memory storage default, got %s", cfg.Storage.Type)
	}
	if cfg.Broker.Exchange != "datasieve" || cfg.Broker.QueueTTLMillis != 30000 {
		t.Errorf("unexpected broker defaults: %+v", cfg.Broker)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  host: 127.0.0.1
  port: 9000
app:
  source_bucket: staging
storage:
  type: postgres
  postgres:
    host: db.internal
    database: sieve
broker:
  queue_ttl_milliseconds: 5000
logging:
  level: debug
  format: text
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("server not loaded: %+v", cfg.Server)
	}
	if cfg.App.SourceBucket != "staging" {
		t.Errorf("expected staging bucket, got %s", cfg.App.SourceBucket)
	}
	// Unset file keys keep their defaults.
	if cfg.App.ValidateBucket != "validated" {
		t.Errorf("expected default validate bucket, got %s", cfg.App.ValidateBucket)
	}
	if cfg.Storage.Type != "postgres" || cfg.Storage.PostgreSQL.Host != "db.internal" {
		t.Errorf("storage not loaded: %+v", cfg.Storage)
	}
	if cfg.Broker.QueueTTLMillis != 5000 {
		t.Errorf("expected TTL 5000, got %d", cfg.Broker.QueueTTLMillis)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging not loaded: %+v", cfg.Logging)
	}
}

func TestLoadExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "hunter2")
	content := `
storage:
  type: postgres
  postgres:
    password: ${TEST_PG_PASSWORD}
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Storage.PostgreSQL.Password != "hunter2" {
		t.Errorf("env var not expanded, got %q", cfg.Storage.PostgreSQL.Password)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATASIEVE_PORT", "8081")
	t.Setenv("DATASIEVE_STORAGE_TYPE", "mysql")
	t.Setenv("RABBITMQ_HOST", "mq.internal")
	t.Setenv("RABBITMQ_DEFAULT_USER", "sieve")
	t.Setenv("MINIO_HOST", "minio.internal:9000")
	t.Setenv("DATASIEVE_MYSQL_DATABASE", "registry")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("expected port override 8081, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "mysql" {
		t.Errorf("expected mysql storage, got %s", cfg.Storage.Type)
	}
	if cfg.Broker.Host != "mq.internal" || cfg.Broker.Username != "sieve" {
		t.Errorf("broker overrides not applied: %+v", cfg.Broker)
	}
	if cfg.ObjectStore.Endpoint != "minio.internal:9000" {
		t.Errorf("object store override not applied: %s", cfg.ObjectStore.Endpoint)
	}
	if cfg.Storage.MySQL.Database != "registry" {
		t.Errorf("mysql override not applied: %s", cfg.Storage.MySQL.Database)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "cassandra" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty exchange", func(c *Config) { c.Broker.Exchange = "" }},
		{"negative ttl", func(c *Config) { c.Broker.QueueTTLMillis = -1 }},
		{"empty source router", func(c *Config) { c.App.SourceRouter = "" }},
		{"empty quarantine bucket", func(c *Config) { c.App.QuarantineBucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Address(); got != "0.0.0.0:8000" {
		t.Errorf("unexpected address: %s", got)
	}
}
