// Package main is the entry point for the validation worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/datasieve/datasieve/internal/broker/rabbit"
	"github.com/datasieve/datasieve/internal/config"
	"github.com/datasieve/datasieve/internal/logging"
	"github.com/datasieve/datasieve/internal/metrics"
	"github.com/datasieve/datasieve/internal/objectstore/miniostore"
	"github.com/datasieve/datasieve/internal/pipeline"
	"github.com/datasieve/datasieve/internal/storage"
	"github.com/datasieve/datasieve/internal/storage/memory"
	"github.com/datasieve/datasieve/internal/storage/mysql"
	"github.com/datasieve/datasieve/internal/storage/postgres"
	"github.com/datasieve/datasieve/internal/worker"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("datasieve-worker %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	logger.Info("starting worker",
		slog.String("version", version),
		slog.String("storage", cfg.Storage.Type),
		slog.String("queue", cfg.Broker.QueueName),
	)

	store, err := createStorage(cfg, logger)
	if err != nil {
		logger.Error("failed to create storage backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	objects, err := miniostore.NewStore(cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to create object store client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	brk, err := rabbit.NewBroker(cfg.Broker, logger)
	if err != nil {
		logger.Error("failed to connect to broker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m := metrics.New()
	store = storage.WithMetrics(store, cfg.Storage.Type, m)
	evaluator := pipeline.NewEvaluator(store, objects, pipeline.Buckets{
		Source:     cfg.App.SourceBucket,
		Validated:  cfg.App.ValidateBucket,
		Quarantine: cfg.App.QuarantineBucket,
	}, m, logger)
	w := worker.New(brk, evaluator, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.String("error", err.Error()))
	}

	if err := brk.Close(); err != nil {
		logger.Error("broker close error", slog.String("error", err.Error()))
	}
	if err := store.Close(); err != nil {
		logger.Error("storage close error", slog.String("error", err.Error()))
	}

	logger.Info("shutdown complete")
}

// createStorage creates the appropriate storage backend based on
// configuration.
func createStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "memory":
		logger.Info("using in-memory storage")
		return memory.NewStore(), nil

	case "postgres", "postgresql":
		logger.Info("connecting to PostgreSQL",
			slog.String("host", cfg.Storage.PostgreSQL.Host),
			slog.Int("port", cfg.Storage.PostgreSQL.Port),
			slog.String("database", cfg.Storage.PostgreSQL.Database),
		)
		return postgres.NewStore(cfg.Storage.PostgreSQL)

	case "mysql":
		logger.Info("connecting to MySQL",
			slog.String("host", cfg.Storage.MySQL.Host),
			slog.Int("port", cfg.Storage.MySQL.Port),
			slog.String("database", cfg.Storage.MySQL.Database),
		)
		return mysql.NewStore(cfg.Storage.MySQL)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
