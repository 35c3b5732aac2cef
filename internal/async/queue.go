package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one image to process.
type Job struct {
	Path        string
	Force       bool // reprocess even if unchanged and complete
	SubmittedAt time.Time
	TraceID     string
}

// Outcome is reported once per job after processing.
type Outcome struct {
	Job    Job
	Result *pipeline.Result
	Err    error
}

// Processor is the per-image work the queue runs.
type Processor interface {
	ProcessImage(ctx context.Context, path string, force bool) (*pipeline.Result, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
