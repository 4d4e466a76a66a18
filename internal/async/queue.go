package async

import (
	"context"
	"errors"
	"time"

	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

// ErrClosed is returned when a job arrives after shutdown has begun.
var ErrClosed = errors.New("audit queue is closed")

// Job is one queued document audit.
type Job struct {
	Request     pipeline.Request
	SubmittedAt time.Time
	TraceID     string
}

// Queue accepts audit jobs for background processing.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes one audit. The bool reports whether the result came from
// the idempotence cache.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.AuditResult, bool, error)
}
