package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
)

// ListFilter narrows ListRecords; zero values mean no filter.
type ListFilter struct {
	Status string
	Limit  int
}

type CardRecordRepository interface {
	Upsert(ctx context.Context, rec *entity.CardRecord) error
	Get(ctx context.Context, filename string) (*entity.CardRecord, error)
	List(ctx context.Context, f ListFilter) ([]*entity.CardRecord, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

var recordColumns = []string{
	"filename", "name", "age", "sex", "telephone", "address", "kebele", "visit_date",
	"status", "notes", "outcomes", "content_hash", "job_id", "updated_at",
}

type cardRecordRow struct {
	Filename    string `sql:"filename"`
	Name        string `sql:"name"`
	Age         string `sql:"age"`
	Sex         string `sql:"sex"`
	Telephone   string `sql:"telephone"`
	Address     string `sql:"address"`
	Kebele      string `sql:"kebele"`
	VisitDate   string `sql:"visit_date"`
	Status      string `sql:"status"`
	Notes       string `sql:"notes"`
	Outcomes    string `sql:"outcomes"`
	ContentHash string `sql:"content_hash"`
	JobID       string `sql:"job_id"`
	UpdatedAt   int64  `sql:"updated_at"`
}

func (r cardRecordRow) entity() *entity.CardRecord {
	rec := &entity.CardRecord{
		Filename:    r.Filename,
		Name:        r.Name,
		Age:         r.Age,
		Sex:         r.Sex,
		Telephone:   r.Telephone,
		Address:     r.Address,
		Kebele:      r.Kebele,
		Date:        r.VisitDate,
		Status:      r.Status,
		Notes:       r.Notes,
		ContentHash: r.ContentHash,
		JobID:       r.JobID,
		UpdatedAt:   fromMillis(r.UpdatedAt),
	}
	if r.Outcomes != "" && r.Outcomes != "{}" {
		_ = json.Unmarshal([]byte(r.Outcomes), &rec.Outcomes)
	}
	return rec
}

type cardRecordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCardRecordRepository(db *DB, logger *slog.Logger) CardRecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &cardRecordRepository{db: db, logger: logger}
}

// Upsert writes rec, replacing any earlier row for the same filename.
func (r *cardRecordRepository) Upsert(ctx context.Context, rec *entity.CardRecord) error {
	outcomes := []byte("{}")
	if len(rec.Outcomes) > 0 {
		b, err := json.Marshal(rec.Outcomes)
		if err != nil {
			return fmt.Errorf("encode outcomes: %w", err)
		}
		outcomes = b
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	q := r.db.builder().Insert(tableCardRecord).
		Columns(recordColumns...).
		Values(
			rec.Filename, rec.Name, rec.Age, rec.Sex, rec.Telephone, rec.Address, rec.Kebele, rec.Date,
			rec.Status, rec.Notes, string(outcomes), rec.ContentHash, rec.JobID, millis(rec.UpdatedAt),
		).
		OnConflict(
			entsql.ConflictColumns("filename"),
			entsql.ResolveWithNewValues(),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.logger.Error("failed to upsert card record", "filename", rec.Filename, "status", rec.Status, "error", err)
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *cardRecordRepository) Get(ctx context.Context, filename string) (*entity.CardRecord, error) {
	q := r.db.builder().
		Select(recordColumns...).
		From(entsql.Table(tableCardRecord)).
		Where(entsql.EQ("filename", filename))

	var rows []cardRecordRow
	if err := r.db.query(ctx, q, &rows); err != nil {
		r.logger.Error("failed to get card record", "filename", filename, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("card record %q: %w", filename, common.ErrNotFound)
	}
	return rows[0].entity(), nil
}

// List returns records ordered by filename.
func (r *cardRecordRepository) List(ctx context.Context, f ListFilter) ([]*entity.CardRecord, error) {
	q := r.db.builder().
		Select(recordColumns...).
		From(entsql.Table(tableCardRecord)).
		OrderBy(entsql.Asc("filename"))
	if f.Status != "" {
		q = q.Where(entsql.EQ("status", f.Status))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []cardRecordRow
	if err := r.db.query(ctx, q, &rows); err != nil {
		r.logger.Error("failed to list card records", "status", f.Status, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.CardRecord, len(rows))
	for i, row := range rows {
		out[i] = row.entity()
	}
	return out, nil
}

func (r *cardRecordRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	q := r.db.builder().
		Select("status", entsql.As(entsql.Count("*"), "n")).
		From(entsql.Table(tableCardRecord)).
		GroupBy("status")

	var rows []struct {
		Status string `sql:"status"`
		N      int    `sql:"n"`
	}
	if err := r.db.query(ctx, q, &rows); err != nil {
		r.logger.Error("failed to count card records", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
