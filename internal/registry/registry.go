// Package registry implements the control-plane service: schema
// registration and lookup, move metrics, and scheduling of validation jobs.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hamba/avro/v2"

	"github.com/datasieve/datasieve/internal/broker"
	"github.com/datasieve/datasieve/internal/schema"
	"github.com/datasieve/datasieve/internal/storage"
)

// ErrInvalidSchema marks a registration payload that is not a usable
// record schema.
var ErrInvalidSchema = errors.New("invalid schema document")

// JobMessage is the wire form of a validation job.
type JobMessage struct {
	Namespace string `json:"namespace"`
}

// Registry is the control-plane service.
type Registry struct {
	store        storage.Storage
	broker       broker.Broker
	sourceRouter string
	logger       *slog.Logger
}

// New creates a registry service. sourceRouter is the routing key used when
// scheduling validation jobs.
func New(store storage.Storage, brk broker.Broker, sourceRouter string, logger *slog.Logger) *Registry {
	return &Registry{store: store, broker: brk, sourceRouter: sourceRouter, logger: logger}
}

// CreateSchema validates and stores a schema document under a namespace,
// returning the new registration id. The document must pass both the
// structural field-shape check used by the validator and a full Avro parse.
func (r *Registry) CreateSchema(ctx context.Context, namespace string, document []byte) (string, error) {
	if _, err := schema.ParseDocumentJSON(document); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if _, err := avro.ParseWithCache(string(document), "", &avro.SchemaCache{}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, document); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	id, err := r.store.InsertSchema(ctx, namespace, compact.String())
	if err != nil {
		return "", err
	}
	r.logger.Info("schema registered",
		slog.String("namespace", namespace),
		slog.String("id", id))
	return id, nil
}

// GetByNamespace returns the registrations for a namespace in insertion
// order.
func (r *Registry) GetByNamespace(ctx context.Context, namespace string) ([]storage.SchemaRow, error) {
	return r.store.GetSchemasByNamespace(ctx, namespace)
}

// DeleteByNamespace removes all registrations for a namespace.
func (r *Registry) DeleteByNamespace(ctx context.Context, namespace string) error {
	return r.store.DeleteSchemasByNamespace(ctx, namespace)
}

// DeleteAll empties the registry.
func (r *Registry) DeleteAll(ctx context.Context) error {
	return r.store.DeleteAllSchemas(ctx)
}

// ListAll returns every registration in insertion order.
func (r *Registry) ListAll(ctx context.Context) ([]storage.SchemaRow, error) {
	return r.store.ListSchemas(ctx)
}

// Metrics returns the per-destination move totals.
func (r *Registry) Metrics(ctx context.Context) ([]storage.Metric, error) {
	return r.store.GetMetrics(ctx)
}

// ScheduleValidation publishes a validation job for the namespace.
func (r *Registry) ScheduleValidation(ctx context.Context, namespace string) error {
	body, err := json.Marshal(JobMessage{Namespace: namespace})
	if err != nil {
		return fmt.Errorf("%w: encode job: %v", broker.ErrBrokerSend, err)
	}
	if err := r.broker.Publish(ctx, r.sourceRouter, body, 0); err != nil {
		return err
	}
	r.logger.Info("validation job scheduled",
		slog.String("namespace", namespace),
		slog.String("routing_key", r.sourceRouter))
	return nil
}
