// Package history records served predictions asynchronously. Records are
// optionally enriched with a place name and then written to every sink.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
	"github.com/couchcryptid/disaster-prediction/internal/worker"
)

// DefaultTimeout bounds the work done for one record across all sinks.
const DefaultTimeout = 10 * time.Second

// Sink stores prediction records.
type Sink interface {
	Name() string
	Save(ctx context.Context, rec domain.PredictionRecord) error
}

// Recorder fans prediction records out to sinks on a bounded worker pool.
type Recorder struct {
	pool     *worker.Pool[domain.PredictionRecord]
	sinks    []Sink
	resolver domain.LocationResolver
	timeout  time.Duration
	metrics  *observability.ServingMetrics
	logger   *slog.Logger
}

// NewRecorder creates a Recorder. A nil resolver disables location enrichment.
func NewRecorder(
	sinks []Sink,
	resolver domain.LocationResolver,
	workers, buffer int,
	metrics *observability.ServingMetrics,
	logger *slog.Logger,
) *Recorder {
	r := &Recorder{
		sinks:    sinks,
		resolver: resolver,
		timeout:  DefaultTimeout,
		metrics:  metrics,
		logger:   logger,
	}
	r.pool = worker.NewPool(workers, buffer, r.process, logger)
	return r
}

// Start launches the workers.
func (r *Recorder) Start(ctx context.Context) {
	r.logger.Info("prediction recorder started", "workers", r.pool.Workers(), "sinks", len(r.sinks))
	r.pool.Start(ctx)
}

// Record queues rec without blocking. A full queue drops the record.
func (r *Recorder) Record(rec domain.PredictionRecord) bool {
	if r.pool.TrySubmit(rec) {
		return true
	}
	r.metrics.RecordingsDropped.Inc()
	r.logger.Warn("prediction record dropped, recording queue full", "record_id", rec.ID)
	return false
}

// Stop rejects new records and waits for queued ones to be written.
func (r *Recorder) Stop() {
	r.pool.Stop()
	r.logger.Info("prediction recorder stopped")
}

func (r *Recorder) process(ctx context.Context, rec domain.PredictionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec = domain.ResolveLocation(ctx, rec, r.resolver, r.logger)

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Save(ctx, rec); err != nil {
			r.metrics.HistoryRecords.WithLabelValues(sink.Name(), "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		r.metrics.HistoryRecords.WithLabelValues(sink.Name(), "success").Inc()
	}
	if len(errs) > 0 {
		return fmt.Errorf("record prediction %s: %w", rec.ID, errors.Join(errs...))
	}
	return nil
}
