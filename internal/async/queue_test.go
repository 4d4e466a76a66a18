package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	failFor map[uuid.UUID]error
	started chan struct{}
	gate    chan struct{}
	waitCtx bool
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.AuditResult, bool, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.waitCtx {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	s.mu.Lock()
	s.calls++
	err := s.failFor[req.Document.ID]
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return &pipeline.AuditResult{DocumentID: req.Document.ID, Outcome: constants.AuditPassed}, false, nil
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type collector struct {
	mu      sync.Mutex
	results map[uuid.UUID]error
}

func newCollector() *collector {
	return &collector{results: make(map[uuid.UUID]error)}
}

func (c *collector) handle(job Job, _ *pipeline.AuditResult, _ bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[job.Request.Document.ID] = err
}

func (c *collector) snapshot() map[uuid.UUID]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]error, len(c.results))
	for id, err := range c.results {
		out[id] = err
	}
	return out
}

func jobFor(id uuid.UUID) Job {
	return Job{
		Request:     pipeline.Request{Document: entity.Document{ID: id}},
		SubmittedAt: time.Now().UTC(),
	}
}

func TestAuditQueue_ProcessesEveryJob(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{}
	sink := newCollector()
	q := NewAuditQueue(runner, testLogger(), WithWorkers(3), WithResultHandler(sink.handle))

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = uuid.New()
		if err := q.Enqueue(context.Background(), jobFor(ids[i])); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	q.Shutdown(context.Background())

	if got := runner.callCount(); got != len(ids) {
		t.Fatalf("expected %d runs, got %d", len(ids), got)
	}
	results := sink.snapshot()
	for _, id := range ids {
		err, seen := results[id]
		if !seen {
			t.Fatalf("job %s never reached the handler", id)
		}
		if err != nil {
			t.Fatalf("job %s failed: %v", id, err)
		}
	}
}

func TestAuditQueue_EnqueueAfterShutdownFails(t *testing.T) {
	t.Parallel()
	q := NewAuditQueue(&stubRunner{}, testLogger(), WithWorkers(1))
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), jobFor(uuid.New()))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAuditQueue_ShutdownIdempotent(t *testing.T) {
	t.Parallel()
	q := NewAuditQueue(&stubRunner{}, testLogger(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
}

func TestAuditQueue_ReportsRunnerErrors(t *testing.T) {
	t.Parallel()
	bad := uuid.New()
	boom := errors.New("store unavailable")
	runner := &stubRunner{failFor: map[uuid.UUID]error{bad: boom}}
	sink := newCollector()
	q := NewAuditQueue(runner, testLogger(), WithWorkers(1), WithResultHandler(sink.handle))

	good := uuid.New()
	for _, id := range []uuid.UUID{bad, good} {
		if err := q.Enqueue(context.Background(), jobFor(id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	q.Shutdown(context.Background())

	results := sink.snapshot()
	if !errors.Is(results[bad], boom) {
		t.Fatalf("expected runner error for %s, got %v", bad, results[bad])
	}
	if results[good] != nil {
		t.Fatalf("expected clean run for %s, got %v", good, results[good])
	}
}

func TestAuditQueue_TimeoutCancelsSlowRuns(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{waitCtx: true}
	sink := newCollector()
	q := NewAuditQueue(runner, testLogger(),
		WithWorkers(1),
		WithProcessTimeout(15*time.Millisecond),
		WithResultHandler(sink.handle))

	id := uuid.New()
	if err := q.Enqueue(context.Background(), jobFor(id)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Shutdown(context.Background())

	if err := sink.snapshot()[id]; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAuditQueue_FullBufferHonorsEnqueueContext(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{
		started: make(chan struct{}, 4),
		gate:    make(chan struct{}),
	}
	q := NewAuditQueue(runner, testLogger(), WithWorkers(1), WithQueueSize(1))

	if err := q.Enqueue(context.Background(), jobFor(uuid.New())); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-runner.started // worker now holds the first job

	if err := q.Enqueue(context.Background(), jobFor(uuid.New())); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Enqueue(canceled, jobFor(uuid.New()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error on full buffer, got %v", err)
	}

	close(runner.gate)
	q.Shutdown(context.Background())
}
