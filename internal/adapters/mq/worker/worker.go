// Package worker runs the goroutines that fold recorded events into the
// live per-session tally.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/pkg/logger"
	"github.com/proctorkit/vigil/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.Event

// Updater folds one event kind into a session's live counts.
type Updater interface {
	Apply(ctx context.Context, sessionID string, kind model.EventKind) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events and applies tally updates.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// TallyWorker implements Worker over a queue and an updater.
type TallyWorker struct {
	queue   Queue
	updater Updater
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewTallyWorker creates a new worker with configuration options.
func NewTallyWorker(queue Queue, updater Updater, opts ...Option) *TallyWorker {
	w := &TallyWorker{
		queue:    queue,
		updater:  updater,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *TallyWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error applying event to tally", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *TallyWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent folds a single event into the tally.
func (w *TallyWorker) processEvent(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.updater.Apply(ctx, event.SessionID, event.Kind); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "tally_error")
		w.logger.Error(ctx, "tally update failed for event",
			logger.String("eventID", event.EventID),
			logger.String("sessionID", event.SessionID),
			logger.Error(err),
		)
		return fmt.Errorf("tally update failed for event %s: %w", event.EventID, err)
	}

	metrics.RecordTallyApplied(event.Kind.String())
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*TallyWorker
	queue   Queue
	updater Updater

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, updater Updater) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*TallyWorker, workerCount),
		queue:    queue,
		updater:  updater,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewTallyWorker(
			queue,
			updater,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers, waiting briefly for each to drain.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.shutdown:
		default:
			close(worker.shutdown)
		}
	}

	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
			p.logger.Warn(context.Background(), "worker did not stop in time", logger.String("worker", worker.name))
		}
	}
}
