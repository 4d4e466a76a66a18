package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

// ResultHandler receives every finished job. Handlers run on worker
// goroutines, so they must be safe for concurrent use.
type ResultHandler func(job Job, result *pipeline.AuditResult, cached bool, err error)

// AuditQueue is a bounded worker pool over a Runner. Jobs past the buffer
// apply backpressure to the producer instead of being dropped.
type AuditQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	handler ResultHandler

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*AuditQueue)

func WithWorkers(n int) Option {
	return func(q *AuditQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *AuditQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *AuditQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler registers a callback for finished jobs.
func WithResultHandler(h ResultHandler) Option {
	return func(q *AuditQueue) {
		q.handler = h
	}
}

func NewAuditQueue(runner Runner, logger *slog.Logger, opts ...Option) *AuditQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &AuditQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *AuditQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("audit.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					if job.TraceID != "" {
						ctx = common.WithRequestID(ctx, job.TraceID)
					}
					result, cached, err := q.runner.Run(ctx, job.Request)
					cancel()

					if err != nil {
						q.logger.Error("audit.worker.failed",
							"worker_id", workerID,
							"document_id", job.Request.Document.ID,
							"err", err)
					} else {
						q.logger.Info("audit.worker.ok",
							"worker_id", workerID,
							"document_id", job.Request.Document.ID,
							"outcome", result.Outcome,
							"cached", cached)
					}
					if q.handler != nil {
						q.handler(job, result, cached, err)
					}
				}

				q.logger.Info("audit.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a job. A full buffer blocks until a worker frees a slot
// or ctx is done.
func (q *AuditQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "document_id", job.Request.Document.ID)
		return ErrClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("audit.queued", "document_id", job.Request.Document.ID)
	default:
		q.logger.Warn("queue full, applying backpressure", "document_id", job.Request.Document.ID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown stops intake and waits for in-flight jobs to drain, or for ctx.
func (q *AuditQueue) Shutdown(ctx context.Context) {
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
