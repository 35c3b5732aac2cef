package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
)

// JobResult is what a finished model call leaves behind.
type JobResult struct {
	Status       constants.JobStatus
	ModelName    string
	RawReply     string
	ErrorMessage string
	Attempts     int
}

type ExtractJobRepository interface {
	Start(ctx context.Context, filename, model string) (*entity.ExtractJob, error)
	Finish(ctx context.Context, jobID uuid.UUID, res JobResult) error
	ListByFilename(ctx context.Context, filename string) ([]*entity.ExtractJob, error)
}

type extractJobRow struct {
	ID           string `sql:"id"`
	Filename     string `sql:"filename"`
	Status       string `sql:"status"`
	ModelName    string `sql:"model_name"`
	RawReply     string `sql:"raw_reply"`
	ErrorMessage string `sql:"error_message"`
	Attempts     int    `sql:"attempts"`
	StartedAt    int64  `sql:"started_at"`
	FinishedAt   int64  `sql:"finished_at"`
}

func (r extractJobRow) entity() *entity.ExtractJob {
	job := &entity.ExtractJob{
		Filename:     r.Filename,
		Status:       r.Status,
		ModelName:    r.ModelName,
		RawReply:     r.RawReply,
		ErrorMessage: r.ErrorMessage,
		Attempts:     r.Attempts,
		StartedAt:    fromMillis(r.StartedAt),
	}
	job.ID, _ = uuid.Parse(r.ID)
	if r.FinishedAt != 0 {
		t := fromMillis(r.FinishedAt)
		job.FinishedAt = &t
	}
	return job
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, filename, model string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    string(constants.JobStatusRunning),
		ModelName: model,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	q := r.db.builder().Insert(tableExtractJob).
		Columns("id", "filename", "status", "model_name", "started_at").
		Values(job.ID.String(), job.Filename, job.Status, job.ModelName, millis(job.StartedAt))
	if _, err := r.db.exec(ctx, q); err != nil {
		r.log.Error("extract_job start failed", "filename", filename, "err", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r.log.Debug("extract_job started", "job_id", job.ID, "filename", filename, "model", model)
	return job, nil
}

func (r *extractJobRepo) Finish(ctx context.Context, jobID uuid.UUID, res JobResult) error {
	q := r.db.builder().Update(tableExtractJob).
		Set("status", string(res.Status)).
		Set("raw_reply", res.RawReply).
		Set("error_message", res.ErrorMessage).
		Set("attempts", res.Attempts).
		Set("finished_at", millis(time.Now())).
		Where(entsql.EQ("id", jobID.String()))
	if res.ModelName != "" {
		q.Set("model_name", res.ModelName)
	}
	result, err := r.db.exec(ctx, q)
	if err != nil {
		r.log.Error("extract_job finish failed", "job_id", jobID, "status", res.Status, "err", err)
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("extract job %s: %w", jobID, common.ErrNotFound)
	}
	if res.Status == constants.JobStatusFailed {
		r.log.Warn("extract_job finished", "job_id", jobID, "status", res.Status, "error", res.ErrorMessage)
	} else {
		r.log.Debug("extract_job finished", "job_id", jobID, "status", res.Status, "attempts", res.Attempts)
	}
	return nil
}

func (r *extractJobRepo) ListByFilename(ctx context.Context, filename string) ([]*entity.ExtractJob, error) {
	q := r.db.builder().
		Select("id", "filename", "status", "model_name", "raw_reply", "error_message", "attempts", "started_at", "finished_at").
		From(entsql.Table(tableExtractJob)).
		Where(entsql.EQ("filename", filename)).
		OrderBy(entsql.Asc("started_at"))

	var rows []extractJobRow
	if err := r.db.query(ctx, q, &rows); err != nil {
		r.log.Error("failed to list extract jobs", "filename", filename, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.ExtractJob, len(rows))
	for i, row := range rows {
		out[i] = row.entity()
	}
	return out, nil
}
