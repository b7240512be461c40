package storage

import (
	"context"

	"github.com/datasieve/datasieve/internal/metrics"
)

// WithMetrics wraps a backend so every data operation is counted in
// prometheus, labelled with the backend name.
func WithMetrics(next Storage, backend string, m *metrics.Metrics) Storage {
	return &instrumentedStorage{next: next, backend: backend, metrics: m}
}

type instrumentedStorage struct {
	next    Storage
	backend string
	metrics *metrics.Metrics
}

func (s *instrumentedStorage) InsertSchema(ctx context.Context, namespace, document string) (string, error) {
	id, err := s.next.InsertSchema(ctx, namespace, document)
	s.metrics.RecordStorageOperation(s.backend, "insert_schema", err)
	return id, err
}

func (s *instrumentedStorage) GetSchemasByNamespace(ctx context.Context, namespace string) ([]SchemaRow, error) {
	rows, err := s.next.GetSchemasByNamespace(ctx, namespace)
	s.metrics.RecordStorageOperation(s.backend, "get_schemas_by_namespace", err)
	return rows, err
}

func (s *instrumentedStorage) DeleteSchemasByNamespace(ctx context.Context, namespace string) error {
	err := s.next.DeleteSchemasByNamespace(ctx, namespace)
	s.metrics.RecordStorageOperation(s.backend, "delete_schemas_by_namespace", err)
	return err
}

func (s *instrumentedStorage) DeleteAllSchemas(ctx context.Context) error {
	err := s.next.DeleteAllSchemas(ctx)
	s.metrics.RecordStorageOperation(s.backend, "delete_all_schemas", err)
	return err
}

func (s *instrumentedStorage) ListSchemas(ctx context.Context) ([]SchemaRow, error) {
	rows, err := s.next.ListSchemas(ctx)
	s.metrics.RecordStorageOperation(s.backend, "list_schemas", err)
	return rows, err
}

func (s *instrumentedStorage) InsertMove(ctx context.Context, record MoveRecord) error {
	err := s.next.InsertMove(ctx, record)
	s.metrics.RecordStorageOperation(s.backend, "insert_move", err)
	return err
}

func (s *instrumentedStorage) ListMoves(ctx context.Context) ([]MoveRecord, error) {
	rows, err := s.next.ListMoves(ctx)
	s.metrics.RecordStorageOperation(s.backend, "list_moves", err)
	return rows, err
}

func (s *instrumentedStorage) GetMetrics(ctx context.Context) ([]Metric, error) {
	rows, err := s.next.GetMetrics(ctx)
	s.metrics.RecordStorageOperation(s.backend, "get_metrics", err)
	return rows, err
}

func (s *instrumentedStorage) Close() error {
	return s.next.Close()
}

func (s *instrumentedStorage) IsHealthy(ctx context.Context) bool {
	return s.next.IsHealthy(ctx)
}
