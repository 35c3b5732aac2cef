package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/metrics"
)

// ProcessorQueue runs jobs on a fixed pool of workers. Each job gets its own
// timeout; a failing job never affects the others.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	base    context.Context
	onDone  func(Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithBaseContext parents every job context on ctx; cancelling it aborts
// in-flight jobs.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

// WithOnDone registers a callback invoked from the worker after each job.
func WithOnDone(fn func(Outcome)) Option {
	return func(q *ProcessorQueue) {
		q.onDone = fn
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		base:    context.Background(),
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("worker started", "worker_id", workerID)

	for job := range q.ch {
		metrics.QueueDepth.Dec()
		if err := context.Cause(q.base); err != nil {
			q.logger.Debug("dropping job, queue context done", "worker_id", workerID, "path", job.Path, "error", err)
			if q.onDone != nil {
				q.onDone(Outcome{Job: job, Err: err})
			}
			continue
		}
		metrics.WorkersActive.Inc()

		ctx := common.WithRequestID(q.base, job.TraceID)
		ctx, cancel := common.WithTimeout(ctx, q.timeout)
		res, err := q.proc.ProcessImage(ctx, job.Path, job.Force)
		cancel()
		metrics.WorkersActive.Dec()

		if err != nil {
			q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "trace_id", job.TraceID, "error", err)
		} else {
			q.logger.Debug("processed image", "worker_id", workerID, "path", job.Path, "status", res.Status, "skipped", res.Skipped)
		}
		if q.onDone != nil {
			q.onDone(Outcome{Job: job, Result: res, Err: err})
		}
	}

	q.logger.Debug("worker stopped", "worker_id", workerID)
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	metrics.QueueDepth.Inc()
	select {
	case q.ch <- job:
	default:
		q.logger.Debug("queue full, applying backpressure", "path", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			metrics.QueueDepth.Dec()
			return ctx.Err()
		}
	}
	q.logger.Debug("queued image for processing", "path", job.Path, "force", job.Force, "trace_id", job.TraceID)
	return nil
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
