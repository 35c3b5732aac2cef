package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcessor struct {
	delay    time.Duration
	failOn   string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (p *fakeProcessor) ProcessImage(ctx context.Context, path string, force bool) (*pipeline.Result, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	p.seen = append(p.seen, path)
	p.mu.Unlock()

	if path == p.failOn {
		return &pipeline.Result{Filename: path, Status: constants.JobStatusFailed}, errors.New("model unavailable")
	}
	return &pipeline.Result{Filename: path, Status: constants.JobStatusComplete, Skipped: !force && path == "done.jpg"}, nil
}

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	proc := &fakeProcessor{delay: 5 * time.Millisecond, failOn: "card3.jpg"}

	var mu sync.Mutex
	outcomes := map[string]Outcome{}
	q := NewProcessorQueue(proc, quietLogger(),
		WithWorkers(3),
		WithQueueSize(2),
		WithOnDone(func(o Outcome) {
			mu.Lock()
			outcomes[o.Job.Path] = o
			mu.Unlock()
		}),
	)

	for i := 1; i <= 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: fmt.Sprintf("card%d.jpg", i)}))
	}
	q.Shutdown(context.Background())

	assert.Len(t, proc.seen, 10)
	assert.LessOrEqual(t, proc.maxSeen.Load(), int32(3))
	require.Len(t, outcomes, 10)
	assert.Error(t, outcomes["card3.jpg"].Err)
	assert.Equal(t, constants.JobStatusFailed, outcomes["card3.jpg"].Result.Status)
	assert.NoError(t, outcomes["card1.jpg"].Err)
	assert.NotEmpty(t, outcomes["card1.jpg"].Job.TraceID)
	assert.False(t, outcomes["card1.jpg"].Job.SubmittedAt.IsZero())
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, quietLogger(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.jpg"})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_ProcessTimeout(t *testing.T) {
	proc := &fakeProcessor{delay: time.Second}
	var got atomic.Value
	q := NewProcessorQueue(proc, quietLogger(),
		WithWorkers(1),
		WithProcessTimeout(10*time.Millisecond),
		WithOnDone(func(o Outcome) { got.Store(o.Err) }),
	)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.jpg"}))
	q.Shutdown(context.Background())

	err, _ := got.Load().(error)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessorQueue_BaseContextCancelsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &fakeProcessor{delay: time.Second}
	var cancelled atomic.Int32
	q := NewProcessorQueue(proc, quietLogger(),
		WithWorkers(2),
		WithBaseContext(ctx),
		WithOnDone(func(o Outcome) {
			if errors.Is(o.Err, context.Canceled) {
				cancelled.Add(1)
			}
		}),
	)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "a.jpg"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "b.jpg"}))
	cancel()
	q.Shutdown(context.Background())

	assert.Equal(t, int32(2), cancelled.Load())
}

func TestProcessorQueue_DropsJobsAfterAbort(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	abort := errors.New("api key rejected")
	cancel(abort)

	proc := &fakeProcessor{}
	var dropped atomic.Int32
	q := NewProcessorQueue(proc, quietLogger(),
		WithWorkers(1),
		WithBaseContext(ctx),
		WithOnDone(func(o Outcome) {
			if errors.Is(o.Err, abort) && o.Result == nil {
				dropped.Add(1)
			}
		}),
	)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "a.jpg"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "b.jpg"}))
	q.Shutdown(context.Background())

	assert.Equal(t, int32(2), dropped.Load())
	assert.Empty(t, proc.seen)
}

func TestProcessorQueue_EnqueueHonorsContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	proc := &blockingProcessor{release: block}
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "a.jpg"}))
	proc.waitStarted(t)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "b.jpg"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{Path: "c.jpg"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	q.Shutdown(context.Background())
}

type blockingProcessor struct {
	release <-chan struct{}
	started sync.Once
	ch      chan struct{}
	init    sync.Once
}

func (p *blockingProcessor) signal() chan struct{} {
	p.init.Do(func() { p.ch = make(chan struct{}) })
	return p.ch
}

func (p *blockingProcessor) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-p.signal():
	case <-time.After(5 * time.Second):
		t.Fatal("worker never started")
	}
}

func (p *blockingProcessor) ProcessImage(ctx context.Context, path string, _ bool) (*pipeline.Result, error) {
	p.started.Do(func() { close(p.signal()) })
	<-p.release
	return &pipeline.Result{Filename: path, Status: constants.JobStatusComplete}, nil
}
