package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/async"
	"github.com/joseph-ayodele/medcards-tracker/internal/ingest"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
)

// ErrAborted wraps the model error that stopped a run early.
var ErrAborted = errors.New("run aborted")

// Summary tallies the outcome of a batch or watch run.
type Summary struct {
	Scanned     uint32
	Matched     uint32
	Processed   int
	Complete    int
	NeedsReview int
	Failed      int
	Unchanged   int
	Dropped     int
	Rows        int // data rows in the workbook after the run
	Elapsed     time.Duration
}

type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) add(o async.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case o.Result == nil:
		t.s.Dropped++
		return
	case o.Result.Skipped:
		t.s.Unchanged++
		return
	}
	t.s.Processed++
	switch o.Result.Status {
	case constants.JobStatusComplete:
		t.s.Complete++
	case constants.JobStatusNeedsReview:
		t.s.NeedsReview++
	default:
		t.s.Failed++
	}
}

func (t *tally) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

// fatalModelError reports errors that would fail every remaining image too.
func fatalModelError(err error) bool {
	return errors.Is(err, llm.ErrUnauthorized) || errors.Is(err, llm.ErrNoCredits)
}

// Runner processes images through a queue and keeps the live sheet saved.
type Runner struct {
	app   *App
	model llm.ModelClient
	sheet Sheet
}

// Sheet is the live workbook a run writes rows into.
type Sheet interface {
	pipeline.RecordWriter
	Save() error
	Len() int
}

func NewRunner(a *App, model llm.ModelClient, sheet Sheet) *Runner {
	return &Runner{app: a, model: model, sheet: sheet}
}

// start builds the processor and queue; the returned cancel aborts the run
// with the given cause.
func (r *Runner) start(ctx context.Context, t *tally, saveEach bool) (*async.ProcessorQueue, context.Context, context.CancelCauseFunc, error) {
	proc, err := r.app.NewProcessor(r.model, r.sheet)
	if err != nil {
		return nil, nil, nil, err
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	queue := r.app.NewQueue(proc,
		async.WithBaseContext(runCtx),
		async.WithOnDone(func(o async.Outcome) {
			t.add(o)
			if saveEach && o.Result != nil {
				if err := r.sheet.Save(); err != nil {
					r.app.Logger.Warn("run.sheet_save_failed", "error", err)
				}
			}
			if o.Err != nil && fatalModelError(o.Err) {
				r.app.Logger.Error("run.abort", "file", o.Job.Path, "error", o.Err)
				cancel(fmt.Errorf("%w: %w", ErrAborted, o.Err))
			}
		}),
	)
	return queue, runCtx, cancel, nil
}

// Batch processes every image under root once. A rejected API key or an
// exhausted account stops the run; images already queued are dropped.
func (r *Runner) Batch(ctx context.Context, root string, force bool) (Summary, error) {
	start := time.Now()
	log := r.app.Logger

	images, stats, err := r.app.NewScanner().Scan(ctx, root)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", root, err)
	}

	t := &tally{}
	queue, runCtx, cancel, err := r.start(ctx, t, false)
	if err != nil {
		return Summary{}, err
	}
	defer cancel(nil)

	log.Info("batch.start", "root", root, "images", len(images), "force", force)
	var enqueueErr error
	for _, img := range images {
		if runCtx.Err() != nil {
			break
		}
		if err := queue.Enqueue(runCtx, async.Job{Path: img.Path, Force: force}); err != nil {
			enqueueErr = err
			break
		}
	}
	queue.Shutdown(context.WithoutCancel(ctx))

	saveErr := r.sheet.Save()

	sum := t.summary()
	sum.Scanned, sum.Matched = stats.Scanned, stats.Matched
	sum.Rows = r.sheet.Len()
	sum.Elapsed = time.Since(start)
	log.Info("batch.done",
		"root", root,
		"processed", sum.Processed,
		"complete", sum.Complete,
		"needs_review", sum.NeedsReview,
		"failed", sum.Failed,
		"unchanged", sum.Unchanged,
		"dropped", sum.Dropped,
		"rows", sum.Rows,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)

	if cause := context.Cause(runCtx); cause != nil && errors.Is(cause, ErrAborted) {
		return sum, errors.Join(cause, saveErr)
	}
	if err := ctx.Err(); err != nil {
		return sum, errors.Join(err, saveErr)
	}
	if enqueueErr != nil {
		return sum, errors.Join(fmt.Errorf("enqueue: %w", enqueueErr), saveErr)
	}
	if saveErr != nil {
		return sum, fmt.Errorf("save workbook: %w", saveErr)
	}
	return sum, nil
}

// Watch processes existing and newly arriving images under roots until ctx
// ends. The sheet is saved after every finished image.
func (r *Runner) Watch(ctx context.Context, roots []string, force bool) (Summary, error) {
	start := time.Now()
	log := r.app.Logger

	t := &tally{}
	queue, runCtx, cancel, err := r.start(ctx, t, true)
	if err != nil {
		return Summary{}, err
	}
	defer cancel(nil)

	paths, errs, err := ingest.StartWatcher(runCtx, ingest.WatchConfig{
		Roots:       roots,
		SkipHidden:  r.app.Config.Worker.SkipHidden,
		InitialScan: true,
		Debounce:    r.app.Config.Worker.WatchDebounce,
		Logger:      log,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("start watcher: %w", err)
	}

	log.Info("watch.start", "roots", roots, "force", force)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case p, ok := <-paths:
				if !ok {
					return nil
				}
				if err := queue.Enqueue(gctx, async.Job{Path: p, Force: force}); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-errs:
				if !ok {
					return nil
				}
				log.Warn("watch.error", "error", err)
			}
		}
	})
	waitErr := g.Wait()
	queue.Shutdown(context.WithoutCancel(ctx))
	saveErr := r.sheet.Save()

	sum := t.summary()
	sum.Rows = r.sheet.Len()
	sum.Elapsed = time.Since(start)
	log.Info("watch.done", "processed", sum.Processed, "failed", sum.Failed, "rows", sum.Rows, "elapsed_ms", sum.Elapsed.Milliseconds())

	if cause := context.Cause(runCtx); cause != nil && errors.Is(cause, ErrAborted) {
		return sum, errors.Join(cause, saveErr)
	}
	return sum, errors.Join(waitErr, saveErr)
}
