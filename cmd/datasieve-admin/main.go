// Package main is the entry point for the datasieve admin CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/datasieve/datasieve/internal/broker/rabbit"
	"github.com/datasieve/datasieve/internal/config"
	"github.com/datasieve/datasieve/internal/logging"
	"github.com/datasieve/datasieve/internal/objectstore"
	"github.com/datasieve/datasieve/internal/objectstore/miniostore"
	"github.com/datasieve/datasieve/internal/storage"
	"github.com/datasieve/datasieve/internal/storage/memory"
	"github.com/datasieve/datasieve/internal/storage/mysql"
	"github.com/datasieve/datasieve/internal/storage/postgres"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "datasieve-admin",
		Short: "Admin CLI for the datasieve validation service",
		Long:  `A command-line tool for preparing storage, buckets and broker topology, seeding fixtures and inspecting state.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and the metric view",
		RunE:  runMigrate,
	}

	bucketsCmd := &cobra.Command{
		Use:   "buckets",
		Short: "Recreate the staging, validated and quarantine buckets",
		RunE:  runBuckets,
	}
	bucketsCmd.Flags().Bool("keep", false, "Create missing buckets without dropping existing ones")

	topologyCmd := &cobra.Command{
		Use:   "topology",
		Short: "Declare the broker exchanges, queues and bindings",
		RunE:  runTopology,
	}

	seedCmd := &cobra.Command{
		Use:   "seed <dir>",
		Short: "Upload a directory of fixture files into the staging bucket",
		Long:  `Uploads every file in the directory to the staging bucket under the given prefix. JSON arrays are split into one object per blob.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}
	seedCmd.Flags().String("prefix", "", "Key prefix inside the staging bucket (required)")
	_ = seedCmd.MarkFlagRequired("prefix")

	schemasCmd := &cobra.Command{
		Use:   "schemas",
		Short: "Inspect the schema registry",
	}
	schemasListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all registered schemas",
		RunE:  runSchemasList,
	}
	schemasCmd.AddCommand(schemasListCmd)

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the broker queues",
	}
	queuePullCmd := &cobra.Command{
		Use:   "pull <n>",
		Short: "Pull up to n messages from the main queue and print them",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueuePull,
	}
	queuePullCmd.Flags().Bool("ack", false, "Acknowledge pulled messages instead of leaving them queued")
	queueCmd.AddCommand(queuePullCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("datasieve-admin %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}

	rootCmd.AddCommand(migrateCmd, bucketsCmd, topologyCmd, seedCmd, schemasCmd, queueCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Logging), nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.NewStore(), nil
	case "postgres", "postgresql":
		return postgres.NewStore(cfg.Storage.PostgreSQL)
	case "mysql":
		return mysql.NewStore(cfg.Storage.MySQL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// runMigrate opens the storage backend, which applies the migrations.
func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Type == "memory" {
		fmt.Println("memory storage needs no migration")
		return nil
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	fmt.Printf("migrations applied (%s)\n", cfg.Storage.Type)
	return nil
}

// runBuckets drops and recreates the three pipeline buckets.
func runBuckets(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	keep, _ := cmd.Flags().GetBool("keep")

	objects, err := miniostore.NewStore(cfg.ObjectStore)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, bucket := range []string{cfg.App.SourceBucket, cfg.App.ValidateBucket, cfg.App.QuarantineBucket} {
		if !keep {
			removed, err := objects.RemoveBucketIfExists(ctx, bucket)
			if err != nil {
				return err
			}
			if removed {
				fmt.Printf("removed bucket %s\n", bucket)
			}
		}
		if err := objects.CreateBucket(ctx, bucket); err != nil {
			return err
		}
		fmt.Printf("created bucket %s\n", bucket)
	}
	return nil
}

// runTopology connects to the broker, which declares the topology.
func runTopology(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	brk, err := rabbit.NewBroker(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer func() { _ = brk.Close() }()
	fmt.Printf("topology declared (exchange %s, queues %s/%s/%s)\n",
		cfg.Broker.Exchange, cfg.Broker.QueueName, cfg.Broker.QueueRetry, cfg.Broker.QueueDLQ)
	return nil
}

// runSeed uploads fixture files into the staging bucket. A JSON file whose
// top level is an array becomes one blob per element, so each blob holds a
// single record.
func runSeed(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	prefix, _ := cmd.Flags().GetString("prefix")
	prefix = strings.Trim(prefix, "/")

	objects, err := miniostore.NewStore(cfg.ObjectStore)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	entries, err := os.ReadDir(args[0])
	if err != nil {
		return err
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(args[0], entry.Name())
		data, err := os.ReadFile(path) // #nosec G304 -- fixture path comes from the operator
		if err != nil {
			return err
		}

		if strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			n, err := seedJSON(ctx, objects, cfg.App.SourceBucket, prefix, data)
			if err != nil {
				return fmt.Errorf("seed %s: %w", entry.Name(), err)
			}
			uploaded += n
			continue
		}

		key := prefix + "/" + entry.Name()
		if err := objects.PutObject(ctx, cfg.App.SourceBucket, key, data, "application/octet-stream"); err != nil {
			return fmt.Errorf("seed %s: %w", entry.Name(), err)
		}
		uploaded++
	}

	fmt.Printf("uploaded %d blobs to %s/%s\n", uploaded, cfg.App.SourceBucket, prefix)
	return nil
}

func seedJSON(ctx context.Context, objects objectstore.Store, bucket, prefix string, data []byte) (int, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, err
	}

	samples, ok := payload.([]any)
	if !ok {
		samples = []any{payload}
	}

	for _, sample := range samples {
		blob, err := json.MarshalIndent(sample, "", "  ")
		if err != nil {
			return 0, err
		}
		key := fmt.Sprintf("%s/sample_%s.json", prefix, uuid.NewString())
		if err := objects.PutObject(ctx, bucket, key, blob, "application/json"); err != nil {
			return 0, err
		}
	}
	return len(samples), nil
}

// runSchemasList prints every registration.
func runSchemasList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schemas, err := store.ListSchemas(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAMESPACE\tCREATED\tSCHEMA")
	for _, row := range schemas {
		doc := row.Document
		if len(doc) > 60 {
			doc = doc[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.ID, row.Namespace, row.CreatedAt.Format(time.RFC3339), doc)
	}
	return w.Flush()
}

// runQueuePull prints up to n messages from the main queue. Without --ack
// the messages stay unacknowledged and return to the queue when the
// connection closes.
func runQueuePull(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid message count: %s", args[0])
	}
	ack, _ := cmd.Flags().GetBool("ack")

	brk, err := rabbit.NewBroker(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer func() { _ = brk.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deliveries, err := brk.ConsumeSync(ctx, n)
	if err != nil {
		return err
	}

	for _, d := range deliveries {
		fmt.Printf("count=%d tag=%d body=%s\n", d.Count, d.Tag, string(d.Body))
		if ack {
			if err := d.Ack(); err != nil {
				return err
			}
		}
	}
	fmt.Printf("pulled %d messages\n", len(deliveries))
	return nil
}
