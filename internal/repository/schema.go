package repository

import (
	"context"
	"fmt"
)

const (
	tableCardFile   = "card_file"
	tableExtractJob = "extract_job"
	tableCardRecord = "card_record"
)

// Timestamps are stored as unix milliseconds so the same DDL serves SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS card_file (
		filename     TEXT PRIMARY KEY,
		source_path  TEXT NOT NULL,
		file_ext     TEXT NOT NULL,
		file_size    BIGINT NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL,
		uploaded_at  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extract_job (
		id            TEXT PRIMARY KEY,
		filename      TEXT NOT NULL,
		status        TEXT NOT NULL,
		model_name    TEXT NOT NULL DEFAULT '',
		raw_reply     TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		attempts      INTEGER NOT NULL DEFAULT 0,
		started_at    BIGINT NOT NULL,
		finished_at   BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS extract_job_filename_idx ON extract_job (filename, started_at)`,
	`CREATE TABLE IF NOT EXISTS card_record (
		filename     TEXT PRIMARY KEY,
		name         TEXT NOT NULL DEFAULT '',
		age          TEXT NOT NULL DEFAULT '',
		sex          TEXT NOT NULL DEFAULT '',
		telephone    TEXT NOT NULL DEFAULT '',
		address      TEXT NOT NULL DEFAULT '',
		kebele       TEXT NOT NULL DEFAULT '',
		visit_date   TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		notes        TEXT NOT NULL DEFAULT '',
		outcomes     TEXT NOT NULL DEFAULT '{}',
		content_hash TEXT NOT NULL DEFAULT '',
		job_id       TEXT NOT NULL DEFAULT '',
		updated_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS card_record_status_idx ON card_record (status)`,
}

// Migrate creates missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := d.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			d.log.Error("schema migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	d.log.Debug("schema migrated", "statements", len(schema))
	return nil
}
