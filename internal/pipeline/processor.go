package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
	"github.com/joseph-ayodele/medcards-tracker/internal/ingest"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
	"github.com/joseph-ayodele/medcards-tracker/internal/metrics"
	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

// RecordWriter receives every finished row, e.g. the live XLSX sheet.
type RecordWriter interface {
	WriteRecord(rec *entity.CardRecord) error
}

// Deps are the collaborators of a Processor. Sheet may be nil.
type Deps struct {
	Model     llm.ModelClient
	Extractor *extract.Extractor
	Files     repository.CardFileRepository
	Jobs      repository.ExtractJobRepository
	Records   repository.CardRecordRepository
	Sheet     RecordWriter
	ModelName string
}

// Result summarizes one image run.
type Result struct {
	Filename string
	JobID    uuid.UUID
	Status   constants.JobStatus
	Skipped  bool            // unchanged and already complete
	Record   *extract.Record // nil when skipped or failed
	Card     *entity.CardRecord
	Attempts int
	Elapsed  time.Duration
}

// Processor runs read → model → extract → store → write for one image at a time.
// It is safe for concurrent use; images never share state.
type Processor struct {
	Logger *slog.Logger
	deps   Deps
}

func NewProcessor(logger *slog.Logger, deps Deps) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Model == nil || deps.Files == nil || deps.Jobs == nil || deps.Records == nil {
		return nil, common.NewAppError("CONFIG_ERROR", "processor needs a model client and repositories", common.ErrInvalidInput)
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	return &Processor{Logger: logger, deps: deps}, nil
}

// source is an image that can be loaded on demand.
type source struct {
	file *entity.CardFile
	load func() (llm.ImageRequest, error)
}

// ProcessImage processes the image at path. Unless force is set, an image whose
// content is unchanged and whose stored record is COMPLETE is skipped.
func (p *Processor) ProcessImage(ctx context.Context, path string, force bool) (*Result, error) {
	img, err := ingest.Stat(path)
	if err != nil {
		name := filepath.Base(path)
		p.Logger.Error("pipeline.read.failed", "file", name, "error", err)
		return p.fail(ctx, time.Now(), &entity.CardFile{Filename: name, SourcePath: path}, uuid.Nil, 0,
			fmt.Errorf("read image: %w", err))
	}
	return p.run(ctx, source{
		file: &entity.CardFile{
			Filename:    img.Filename,
			SourcePath:  img.Path,
			FileExt:     img.Ext,
			FileSize:    img.Size,
			ContentHash: img.HashHex,
			UploadedAt:  time.Now().UTC(),
		},
		load: func() (llm.ImageRequest, error) { return llm.ReadImage(img.Path) },
	}, force)
}

// ProcessBytes processes an uploaded image held in memory.
func (p *Processor) ProcessBytes(ctx context.Context, filename string, data []byte, force bool) (*Result, error) {
	v := common.NewValidator().
		Field("filename", filename, common.Required, common.ImageFilename).
		Field("image", data, common.Required, common.MaxBytes(constants.MaxImageMB*1024*1024))
	if err := v.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	return p.run(ctx, source{
		file: &entity.CardFile{
			Filename:    filename,
			SourcePath:  "upload:" + filename,
			FileExt:     constants.NormalizeExt(filepath.Ext(filename)),
			FileSize:    int64(len(data)),
			ContentHash: ingest.HashBytes(data),
			UploadedAt:  time.Now().UTC(),
		},
		load: func() (llm.ImageRequest, error) { return llm.ImageFromBytes(filename, data), nil },
	}, force)
}

func (p *Processor) run(ctx context.Context, src source, force bool) (*Result, error) {
	start := time.Now()
	name := src.file.Filename
	ctx = common.WithFilename(ctx, name)

	changed, err := p.deps.Files.Upsert(ctx, src.file)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	if !force {
		// The file row may be ahead of the record; the record's hash decides.
		if prev, err := p.deps.Records.Get(ctx, name); err == nil &&
			prev.Status == string(constants.JobStatusComplete) && prev.ContentHash == src.file.ContentHash {
			metrics.ImagesProcessed.WithLabelValues("skipped").Inc()
			p.Logger.Info("pipeline.image.skipped", "file", name, "reason", "unchanged and complete")
			return &Result{
				Filename: name,
				Status:   constants.JobStatusComplete,
				Skipped:  true,
				Card:     prev,
				Elapsed:  time.Since(start),
			}, nil
		}
	}

	job, err := p.deps.Jobs.Start(ctx, name, p.deps.ModelName)
	if err != nil {
		return nil, fmt.Errorf("start job for %s: %w", name, err)
	}
	p.Logger.Info("pipeline.image.start", "file", name, "job_id", job.ID, "force", force, "changed", changed)

	req, err := src.load()
	if err != nil {
		return p.fail(ctx, start, src.file, job.ID, 0, fmt.Errorf("read image: %w", err))
	}

	reply, err := p.deps.Model.DescribeImage(ctx, req)
	if err != nil {
		return p.fail(ctx, start, src.file, job.ID, reply.Attempts, fmt.Errorf("%w: %w", common.ErrUpstream, err))
	}

	rec, err := p.deps.Extractor.Extract(name, reply.Text)
	if err != nil {
		return p.fail(ctx, start, src.file, job.ID, reply.Attempts, err)
	}

	card := entity.FromExtract(rec)
	card.ContentHash = src.file.ContentHash
	card.JobID = job.ID.String()
	status := constants.JobStatus(card.Status)

	if err := p.deps.Records.Upsert(ctx, card); err != nil {
		return nil, fmt.Errorf("store record %s: %w", name, err)
	}
	if err := p.writeSheet(card); err != nil {
		return nil, err
	}
	if err := p.deps.Jobs.Finish(ctx, job.ID, repository.JobResult{
		Status:    status,
		ModelName: reply.Model,
		RawReply:  reply.Text,
		Attempts:  reply.Attempts,
	}); err != nil {
		return nil, fmt.Errorf("finish job %s: %w", job.ID, err)
	}

	for _, f := range extract.Fields {
		metrics.FieldOutcomes.WithLabelValues(string(f), string(rec.Result(f).Outcome)).Inc()
	}
	elapsed := time.Since(start)
	metrics.ImagesProcessed.WithLabelValues(string(status)).Inc()
	metrics.ImageDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())

	p.Logger.Info("pipeline.image.ok",
		"file", name,
		"job_id", job.ID,
		"status", status,
		"attempts", reply.Attempts,
		"problems", len(rec.Problems()),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return &Result{
		Filename: name,
		JobID:    job.ID,
		Status:   status,
		Record:   rec,
		Card:     card,
		Attempts: reply.Attempts,
		Elapsed:  elapsed,
	}, nil
}

// fail records a FAILED row for the image and returns cause. Store errors are
// joined onto cause so the caller sees both.
func (p *Processor) fail(ctx context.Context, start time.Time, file *entity.CardFile, jobID uuid.UUID, attempts int, cause error) (*Result, error) {
	name := file.Filename
	card := entity.Failed(name, cause.Error())
	card.ContentHash = file.ContentHash
	if jobID != uuid.Nil {
		card.JobID = jobID.String()
	}

	// The per-image context may already be done; bookkeeping still has to land.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var errs []error
	if err := p.deps.Records.Upsert(storeCtx, card); err != nil {
		errs = append(errs, err)
	}
	if err := p.writeSheet(card); err != nil {
		errs = append(errs, err)
	}
	if jobID != uuid.Nil {
		if err := p.deps.Jobs.Finish(storeCtx, jobID, repository.JobResult{
			Status:       constants.JobStatusFailed,
			ErrorMessage: cause.Error(),
			Attempts:     attempts,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	elapsed := time.Since(start)
	metrics.ImagesProcessed.WithLabelValues(string(constants.JobStatusFailed)).Inc()
	metrics.ImageDuration.WithLabelValues(string(constants.JobStatusFailed)).Observe(elapsed.Seconds())
	p.Logger.Error("pipeline.image.failed",
		"file", name,
		"job_id", jobID,
		"attempts", attempts,
		"error", cause,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	res := &Result{
		Filename: name,
		JobID:    jobID,
		Status:   constants.JobStatusFailed,
		Card:     card,
		Attempts: attempts,
		Elapsed:  elapsed,
	}
	return res, errors.Join(append([]error{cause}, errs...)...)
}

func (p *Processor) writeSheet(card *entity.CardRecord) error {
	if p.deps.Sheet == nil {
		return nil
	}
	if err := p.deps.Sheet.WriteRecord(card); err != nil {
		return fmt.Errorf("write sheet row %s: %w", card.Filename, err)
	}
	return nil
}
