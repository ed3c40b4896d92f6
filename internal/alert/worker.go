package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

// Sink defines where a worker delivers an integrity alert.
type Sink interface {
	Record(ctx context.Context, alert *model.IntegrityAlert) error
}

// StoreSink persists alerts so operators can list them later.
type StoreSink struct {
	store store.Store
}

// Record writes the alert row.
func (s *StoreSink) Record(ctx context.Context, alert *model.IntegrityAlert) error {
	return s.store.CreateAlert(ctx, alert)
}

// WorkerPool manages a pool of workers for recording integrity alerts.
type WorkerPool struct {
	size int
	jobs chan model.IntegrityAlert
	sink Sink
	log  *zap.Logger
}

// NewWorkerPool creates a new worker pool backed by the store.
func NewWorkerPool(size, queue int, st store.Store, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size
	}
	return &WorkerPool{
		size: size,
		jobs: make(chan model.IntegrityAlert, queue),
		sink: &StoreSink{store: st},
		log:  log.With(zap.String("component", "alerts")),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("alert worker started", zap.Int("worker", id))
	for {
		select {
		case a := <-wp.jobs:
			wp.record(ctx, a)
		case <-ctx.Done():
			wp.log.Debug("alert worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an alert. It never blocks: when the queue is full the alert is only logged.
func (wp *WorkerPool) Dispatch(a model.IntegrityAlert) {
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now().UTC()
	}
	select {
	case wp.jobs <- a:
	default:
		wp.log.Warn("alert queue full, dropping alert",
			zap.String("bay_id", a.BayID),
			zap.Strings("task_ids", a.TaskIDs),
			zap.String("reason", a.Reason))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.IntegrityAlert {
	return wp.jobs
}

func (wp *WorkerPool) record(ctx context.Context, a model.IntegrityAlert) {
	wp.log.Error("integrity alert",
		zap.String("bay_id", a.BayID),
		zap.Strings("task_ids", a.TaskIDs),
		zap.String("reason", a.Reason),
		zap.Time("detected_at", a.DetectedAt))

	if err := wp.sink.Record(ctx, &a); err != nil {
		wp.log.Error("failed to record integrity alert", zap.String("bay_id", a.BayID), zap.Error(err))
	}
}
