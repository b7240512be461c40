// Package storage provides the persistence contract for the schema registry
// and the per-file move audit, plus its backend implementations.
package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrConnection     = errors.New("storage connection error")
)

// SchemaRow is a stored schema registration. Many rows may share one
// namespace; rows are append-only and returned in insertion order.
type SchemaRow struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Document  string    `json:"schema_avro"`
	CreatedAt time.Time `json:"created_at"`
}

// MoveRecord is the audit row written when a blob leaves staging for its
// destination bucket.
type MoveRecord struct {
	SchemaID  string    `json:"schema_fk"`
	OldBucket string    `json:"old_bucket"`
	NewBucket string    `json:"new_bucket"`
	Namespace string    `json:"namespace"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Metric is one row of the aggregated metric view: how many blobs landed in
// each destination bucket.
type Metric struct {
	NewBucket string `json:"new_bucket"`
	Total     int64  `json:"total"`
}

// Storage defines the persistence backend contract. Every method checks out
// its own connection from the backend's pool, so a call is one unit of work;
// implementations must be safe for concurrent use.
type Storage interface {
	// Schema registry operations. InsertSchema always creates a new row
	// with a fresh ID; registrations are never updated in place.
	InsertSchema(ctx context.Context, namespace, document string) (string, error)
	GetSchemasByNamespace(ctx context.Context, namespace string) ([]SchemaRow, error)
	DeleteSchemasByNamespace(ctx context.Context, namespace string) error
	DeleteAllSchemas(ctx context.Context) error
	ListSchemas(ctx context.Context) ([]SchemaRow, error)

	// Move audit operations. InsertMove is append-only.
	InsertMove(ctx context.Context, record MoveRecord) error
	ListMoves(ctx context.Context) ([]MoveRecord, error)
	GetMetrics(ctx context.Context) ([]Metric, error)

	// Lifecycle
	Close() error
	IsHealthy(ctx context.Context) bool
}
