// Package memory provides an in-memory storage implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datasieve/datasieve/internal/storage"
)

// Store implements storage.Storage using in-memory slices. Insertion order
// is the slice order, which gives the same ordering contract as the SQL
// backends.
type Store struct {
	mu      sync.RWMutex
	schemas []storage.SchemaRow
	moves   []storage.MoveRecord
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{}
}

// InsertSchema appends a new schema row with a fresh UUID.
func (s *Store) InsertSchema(ctx context.Context, namespace, document string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.schemas = append(s.schemas, storage.SchemaRow{
		ID:        id,
		Namespace: namespace,
		Document:  document,
		CreatedAt: time.Now(),
	})
	return id, nil
}

// GetSchemasByNamespace returns the rows for a namespace in insertion order.
// The result may be empty; that is not an error at this layer.
func (s *Store) GetSchemasByNamespace(ctx context.Context, namespace string) ([]storage.SchemaRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]storage.SchemaRow, 0)
	for _, row := range s.schemas {
		if row.Namespace == namespace {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// DeleteSchemasByNamespace removes all rows for a namespace. Idempotent.
func (s *Store) DeleteSchemasByNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.schemas[:0]
	for _, row := range s.schemas {
		if row.Namespace != namespace {
			kept = append(kept, row)
		}
	}
	s.schemas = kept
	return nil
}

// DeleteAllSchemas removes every schema row.
func (s *Store) DeleteAllSchemas(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas = nil
	return nil
}

// ListSchemas returns all schema rows in insertion order.
func (s *Store) ListSchemas(ctx context.Context) ([]storage.SchemaRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]storage.SchemaRow, len(s.schemas))
	copy(rows, s.schemas)
	return rows, nil
}

// InsertMove appends an audit row.
func (s *Store) InsertMove(ctx context.Context, record storage.MoveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.CreatedAt = time.Now()
	s.moves = append(s.moves, record)
	return nil
}

// ListMoves returns all audit rows in insertion order.
func (s *Store) ListMoves(ctx context.Context) ([]storage.MoveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]storage.MoveRecord, len(s.moves))
	copy(rows, s.moves)
	return rows, nil
}

// GetMetrics aggregates audit rows by destination bucket. Rows are ordered
// by destination name for a stable result.
func (s *Store) GetMetrics(ctx context.Context) ([]storage.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int64)
	order := make([]string, 0)
	for _, m := range s.moves {
		if _, seen := totals[m.NewBucket]; !seen {
			order = append(order, m.NewBucket)
		}
		totals[m.NewBucket]++
	}

	metrics := make([]storage.Metric, 0, len(order))
	for _, bucket := range order {
		metrics = append(metrics, storage.Metric{NewBucket: bucket, Total: totals[bucket]})
	}
	return metrics, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// IsHealthy always reports true.
func (s *Store) IsHealthy(ctx context.Context) bool {
	return true
}
