// Package worker runs the long-lived consumer that binds broker deliveries
// to the validation pipeline.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/datasieve/datasieve/internal/broker"
	"github.com/datasieve/datasieve/internal/metrics"
	"github.com/datasieve/datasieve/internal/objectstore"
	"github.com/datasieve/datasieve/internal/pipeline"
	"github.com/datasieve/datasieve/internal/registry"
	"github.com/datasieve/datasieve/internal/storage"
)

// Worker consumes job messages and runs the pipeline for each.
type Worker struct {
	broker    broker.Broker
	evaluator *pipeline.Evaluator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a worker.
func New(brk broker.Broker, evaluator *pipeline.Evaluator, m *metrics.Metrics, logger *slog.Logger) *Worker {
	return &Worker{broker: brk, evaluator: evaluator, metrics: m, logger: logger}
}

// Run consumes the main queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker consuming")
	return w.broker.Consume(ctx, w.handle, w.handleDead)
}

// handle processes one delivery. Transient failures and a missing schema
// registration go to the retry queue; a registration may still land within
// the retry window. Everything else is permanent and dead-letters.
func (w *Worker) handle(ctx context.Context, d broker.Delivery) {
	start := time.Now()

	var job registry.JobMessage
	if err := json.Unmarshal(d.Body, &job); err != nil || job.Namespace == "" {
		w.logger.Error("discarding malformed job message",
			slog.Uint64("tag", d.Tag),
			slog.String("body", string(d.Body)))
		w.metrics.RecordJob("discarded", time.Since(start))
		w.resolve(d.Discard, "discard")
		return
	}

	err := w.evaluator.EvaluateJob(ctx, job.Namespace)
	switch {
	case err == nil:
		w.metrics.RecordJob("success", time.Since(start))
		w.logger.Info("job completed",
			slog.String("namespace", job.Namespace),
			slog.Int64("count", d.Count))
		w.resolve(d.Ack, "ack")
	case retryable(err):
		w.metrics.RecordRetry()
		w.metrics.RecordJob("retry", time.Since(start))
		w.logger.Warn("job failed, scheduling retry",
			slog.String("namespace", job.Namespace),
			slog.Int64("count", d.Count),
			slog.String("error", err.Error()))
		w.resolve(d.Retry, "retry")
	default:
		w.metrics.RecordJob("discarded", time.Since(start))
		w.logger.Error("job failed permanently",
			slog.String("namespace", job.Namespace),
			slog.Int64("count", d.Count),
			slog.String("error", err.Error()))
		w.resolve(d.Discard, "discard")
	}
}

// handleDead receives messages that exhausted their retry budget: log and
// drop.
func (w *Worker) handleDead(ctx context.Context, d broker.Delivery) {
	w.metrics.RecordDeadLetter()
	w.logger.Error("job exhausted retries, dropping",
		slog.Uint64("tag", d.Tag),
		slog.Int64("count", d.Count),
		slog.String("body", string(d.Body)))
	w.resolve(d.Ack, "ack")
}

func (w *Worker) resolve(fn func() error, action string) {
	if err := fn(); err != nil {
		w.logger.Error("failed to resolve delivery",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// retryable reports whether a job failure may succeed on a later attempt.
func retryable(err error) bool {
	return errors.Is(err, storage.ErrSchemaNotFound) ||
		errors.Is(err, storage.ErrConnection) ||
		errors.Is(err, objectstore.ErrBucketConnection) ||
		errors.Is(err, objectstore.ErrBucketOperation) ||
		errors.Is(err, objectstore.ErrObjectNotFound) ||
		errors.Is(err, broker.ErrBrokerConnection) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
