// Package pipeline implements the validation pipeline: resolving the
// registered schema for a namespace, checking every staged blob against it
// and routing each blob to its destination bucket with an audit record.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/datasieve/datasieve/internal/metrics"
	"github.com/datasieve/datasieve/internal/objectstore"
	"github.com/datasieve/datasieve/internal/storage"
	"github.com/datasieve/datasieve/internal/validate"
)

// Buckets names the three buckets the pipeline routes between.
type Buckets struct {
	Source     string
	Validated  string
	Quarantine string
}

// Evaluator runs validation jobs.
type Evaluator struct {
	store   storage.Storage
	objects objectstore.Store
	factory *validate.Factory
	buckets Buckets
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEvaluator wires the pipeline dependencies.
func NewEvaluator(store storage.Storage, objects objectstore.Store, buckets Buckets, m *metrics.Metrics, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:   store,
		objects: objects,
		factory: validate.NewFactory(),
		buckets: buckets,
		metrics: m,
		logger:  logger,
	}
}

// EvaluateJob validates every blob staged under the namespace's prefix and
// moves each to the validated or quarantine bucket.
//
// The schema is resolved once, before iteration: a namespace with no
// registration fails the whole job with storage.ErrSchemaNotFound so the
// broker layer can retry until a registration lands. A blob that cannot be
// parsed or has an unsupported format is logged and left in staging;
// iteration continues. I/O failures on put, delete or audit insert abort
// the job and propagate.
func (e *Evaluator) EvaluateJob(ctx context.Context, namespace string) error {
	prefix := strings.ReplaceAll(namespace, ".", "/")

	schemas, err := e.store.GetSchemasByNamespace(ctx, namespace)
	if err != nil {
		return err
	}
	if len(schemas) == 0 {
		return fmt.Errorf("%w: namespace %q", storage.ErrSchemaNotFound, namespace)
	}
	active := schemas[0]

	// A document that does not decode is passed through raw so the
	// validator reports it as a malformed-schema finding.
	var doc any
	if err := json.Unmarshal([]byte(active.Document), &doc); err != nil {
		doc = active.Document
	}

	return e.objects.IterByPrefix(ctx, e.buckets.Source, prefix+"/", func(filename string, data []byte) error {
		return e.evaluateBlob(ctx, namespace, prefix, filename, data, active.ID, doc)
	})
}

func (e *Evaluator) evaluateBlob(ctx context.Context, namespace, prefix, filename string, data []byte, schemaID string, doc any) error {
	key := prefix + "/" + filename

	checker, err := e.factory.ForFilename(filename)
	if err != nil {
		e.logger.Warn("skipping file with unsupported format",
			slog.String("namespace", namespace),
			slog.String("file", filename),
			slog.String("error", err.Error()))
		e.metrics.RecordFileSkipped()
		return nil
	}

	records, err := checker.Convert(data)
	if err != nil {
		e.logger.Warn("skipping unparsable file",
			slog.String("namespace", namespace),
			slog.String("file", filename),
			slog.String("error", err.Error()))
		e.metrics.RecordFileSkipped()
		return nil
	}

	findings := make([]validate.Finding, 0)
	for _, record := range records {
		findings = append(findings, validate.Validate(record, doc)...)
	}

	destination := e.buckets.Validated
	if len(findings) > 0 {
		destination = e.buckets.Quarantine
	}
	summary, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("encode findings for %s: %w", key, err)
	}

	// Fixed order: copy to destination, remove from staging, audit. A
	// crash mid-sequence leaves the blob re-stageable or at worst loses
	// one audit row.
	if err := e.objects.PutObject(ctx, destination, key, data, "application/json"); err != nil {
		return err
	}
	if _, err := e.objects.DeleteObject(ctx, e.buckets.Source, key); err != nil {
		return err
	}
	if err := e.store.InsertMove(ctx, storage.MoveRecord{
		SchemaID:  schemaID,
		OldBucket: e.buckets.Source,
		NewBucket: destination,
		Namespace: namespace,
		Summary:   string(summary),
	}); err != nil {
		return err
	}

	e.metrics.RecordFileRouted(destination)
	e.logger.Info("file routed",
		slog.String("namespace", namespace),
		slog.String("file", filename),
		slog.String("destination", destination),
		slog.Int("findings", len(findings)))
	return nil
}
