package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/datasieve/datasieve/internal/storage"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "datasieve",
		Username:        "postgres",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DSN returns the connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Store implements storage.Storage using PostgreSQL.
type Store struct {
	db     *sql.DB
	config Config
}

// NewStore opens the connection pool, verifies connectivity and applies the
// migrations.
func NewStore(config Config) (*Store, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	s := &Store{db: db, config: config}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// InsertSchema stores a new registration under a fresh UUID.
func (s *Store) InsertSchema(ctx context.Context, namespace, document string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_registry (id, namespace, schema_avro) VALUES ($1, $2, $3)`,
		id, namespace, document,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert schema: %v", storage.ErrConnection, err)
	}
	return id, nil
}

// GetSchemasByNamespace returns registrations for a namespace in insertion
// order.
func (s *Store) GetSchemasByNamespace(ctx context.Context, namespace string) ([]storage.SchemaRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, namespace, schema_avro, created_at
		FROM schema_registry WHERE namespace = $1 ORDER BY position ASC`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query schemas: %v", storage.ErrConnection, err)
	}
	defer func() { _ = rows.Close() }()
	return scanSchemaRows(rows)
}

// DeleteSchemasByNamespace removes all registrations for a namespace.
func (s *Store) DeleteSchemasByNamespace(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM schema_registry WHERE namespace = $1`, namespace,
	); err != nil {
		return fmt.Errorf("%w: delete schemas: %v", storage.ErrConnection, err)
	}
	return nil
}

// DeleteAllSchemas truncates the registry.
func (s *Store) DeleteAllSchemas(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schema_registry`); err != nil {
		return fmt.Errorf("%w: delete all schemas: %v", storage.ErrConnection, err)
	}
	return nil
}

// ListSchemas returns every registration in insertion order.
func (s *Store) ListSchemas(ctx context.Context) ([]storage.SchemaRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, namespace, schema_avro, created_at
		FROM schema_registry ORDER BY position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list schemas: %v", storage.ErrConnection, err)
	}
	defer func() { _ = rows.Close() }()
	return scanSchemaRows(rows)
}

// InsertMove appends an audit row.
func (s *Store) InsertMove(ctx context.Context, record storage.MoveRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO move_registry (schema_fk, old_bucket, new_bucket, namespace, summary)
		VALUES ($1, $2, $3, $4, $5)`,
		record.SchemaID, record.OldBucket, record.NewBucket, record.Namespace, record.Summary,
	)
	if err != nil {
		return fmt.Errorf("%w: insert move: %v", storage.ErrConnection, err)
	}
	return nil
}

// ListMoves returns the audit rows in insertion order.
func (s *Store) ListMoves(ctx context.Context) ([]storage.MoveRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT schema_fk, old_bucket, new_bucket, namespace, summary, created_at
		FROM move_registry ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list moves: %v", storage.ErrConnection, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]storage.MoveRecord, 0)
	for rows.Next() {
		var r storage.MoveRecord
		if err := rows.Scan(&r.SchemaID, &r.OldBucket, &r.NewBucket, &r.Namespace, &r.Summary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan move: %v", storage.ErrConnection, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMetrics reads the aggregated metric view.
func (s *Store) GetMetrics(ctx context.Context) ([]storage.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT new_bucket, total FROM metric ORDER BY new_bucket ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: query metrics: %v", storage.ErrConnection, err)
	}
	defer func() { _ = rows.Close() }()

	metrics := make([]storage.Metric, 0)
	for rows.Next() {
		var m storage.Metric
		if err := rows.Scan(&m.NewBucket, &m.Total); err != nil {
			return nil, fmt.Errorf("%w: scan metric: %v", storage.ErrConnection, err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsHealthy reports whether the database answers a ping.
func (s *Store) IsHealthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func scanSchemaRows(rows *sql.Rows) ([]storage.SchemaRow, error) {
	out := make([]storage.SchemaRow, 0)
	for rows.Next() {
		var r storage.SchemaRow
		if err := rows.Scan(&r.ID, &r.Namespace, &r.Document, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan schema: %v", storage.ErrConnection, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
