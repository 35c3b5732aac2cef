package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
)

type CardFileRepository interface {
	Get(ctx context.Context, filename string) (*entity.CardFile, error)
	// Upsert stores f and reports whether its content differs from the stored row.
	Upsert(ctx context.Context, f *entity.CardFile) (changed bool, err error)
}

type cardFileRow struct {
	Filename    string `sql:"filename"`
	SourcePath  string `sql:"source_path"`
	FileExt     string `sql:"file_ext"`
	FileSize    int64  `sql:"file_size"`
	ContentHash string `sql:"content_hash"`
	UploadedAt  int64  `sql:"uploaded_at"`
}

func (r cardFileRow) entity() *entity.CardFile {
	return &entity.CardFile{
		Filename:    r.Filename,
		SourcePath:  r.SourcePath,
		FileExt:     r.FileExt,
		FileSize:    r.FileSize,
		ContentHash: r.ContentHash,
		UploadedAt:  fromMillis(r.UploadedAt),
	}
}

type cardFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewCardFileRepository(db *DB, logger *slog.Logger) CardFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &cardFileRepo{db: db, logger: logger}
}

func (r *cardFileRepo) Get(ctx context.Context, filename string) (*entity.CardFile, error) {
	q := r.db.builder().
		Select("filename", "source_path", "file_ext", "file_size", "content_hash", "uploaded_at").
		From(entsql.Table(tableCardFile)).
		Where(entsql.EQ("filename", filename))

	var rows []cardFileRow
	if err := r.db.query(ctx, q, &rows); err != nil {
		r.logger.Error("failed to get card file", "filename", filename, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("card file %q: %w", filename, common.ErrNotFound)
	}
	return rows[0].entity(), nil
}

func (r *cardFileRepo) Upsert(ctx context.Context, f *entity.CardFile) (bool, error) {
	changed := true
	if prev, err := r.Get(ctx, f.Filename); err == nil {
		changed = prev.ContentHash != f.ContentHash
	}

	q := r.db.builder().Insert(tableCardFile).
		Columns("filename", "source_path", "file_ext", "file_size", "content_hash", "uploaded_at").
		Values(f.Filename, f.SourcePath, f.FileExt, f.FileSize, f.ContentHash, millis(f.UploadedAt)).
		OnConflict(
			entsql.ConflictColumns("filename"),
			entsql.ResolveWithNewValues(),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.logger.Error("failed to upsert card file", "filename", f.Filename, "source_path", f.SourcePath, "error", err)
		return false, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return changed, nil
}
