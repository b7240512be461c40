package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/datasieve/datasieve/internal/metrics"
	"github.com/datasieve/datasieve/internal/storage"
	"github.com/datasieve/datasieve/internal/storage/memory"
)

func TestWithMetricsCountsOperations(t *testing.T) {
	m := metrics.New()
	store := storage.WithMetrics(memory.NewStore(), "memory", m)
	ctx := context.Background()

	if _, err := store.InsertSchema(ctx, "rfb.json", `{}`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := store.GetSchemasByNamespace(ctx, "rfb.json"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, err := store.GetSchemasByNamespace(ctx, "rfb.json"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	err := store.InsertMove(ctx, storage.MoveRecord{
		SchemaID:  "s1",
		OldBucket: "gold",
		NewBucket: "validated",
		Namespace: "rfb.json",
		Summary:   "[]",
	})
	if err != nil {
		t.Fatalf("insert move failed: %v", err)
	}

	tests := []struct {
		operation string
		want      float64
	}{
		{"insert_schema", 1},
		{"get_schemas_by_namespace", 2},
		{"insert_move", 1},
		{"list_schemas", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.StorageOperations.WithLabelValues("memory", tt.operation))
		if got != tt.want {
			t.Errorf("%s: expected %v operations, got %v", tt.operation, tt.want, got)
		}
	}

	// The memory backend never fails, so no errors are counted.
	if got := testutil.ToFloat64(m.StorageErrors.WithLabelValues("memory", "insert_schema")); got != 0 {
		t.Errorf("expected 0 errors, got %v", got)
	}
}

type failingStore struct {
	storage.Storage
}

func (failingStore) ListSchemas(ctx context.Context) ([]storage.SchemaRow, error) {
	return nil, errors.New("down")
}

func TestWithMetricsCountsErrors(t *testing.T) {
	m := metrics.New()
	store := storage.WithMetrics(failingStore{memory.NewStore()}, "memory", m)

	if _, err := store.ListSchemas(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(m.StorageOperations.WithLabelValues("memory", "list_schemas")); got != 1 {
		t.Errorf("expected 1 operation, got %v", got)
	}
	if got := testutil.ToFloat64(m.StorageErrors.WithLabelValues("memory", "list_schemas")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}
