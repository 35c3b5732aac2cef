package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
)

// SheetWriter keeps one row per image filename in a workbook on disk.
// Writing the same filename again overwrites its row. Safe for concurrent use.
type SheetWriter struct {
	mu    sync.Mutex
	f     *excelize.File
	sheet string
	path  string
	rows  map[string]int
	next  int
	dirty bool
	log   *slog.Logger
}

// NewSheetWriter resumes path when it already exists, otherwise starts from
// template (when present) or a fresh workbook. Rows are written from row 2.
func NewSheetWriter(path, template string, logger *slog.Logger) (*SheetWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}

	var (
		f     *excelize.File
		sheet string
		err   error
		from  = "new"
	)
	if _, statErr := os.Stat(path); statErr == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
		from = "existing"
	} else {
		var fromTemplate bool
		f, sheet, fromTemplate, err = newWorkbook(template)
		if err != nil {
			return nil, err
		}
		if fromTemplate {
			from = "template"
		}
	}

	w := &SheetWriter{f: f, sheet: sheet, path: path, rows: map[string]int{}, next: 2, log: logger}
	if from == "existing" {
		if err := w.indexRows(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	logger.Info("export.sheet.open", "path", path, "source", from, "sheet", sheet, "rows", len(w.rows))
	return w, nil
}

// indexRows records the row of every filename already present in column A.
func (w *SheetWriter) indexRows() error {
	rows, err := w.f.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}
	for i, r := range rows {
		if i == 0 || len(r) == 0 || r[0] == "" {
			continue
		}
		w.rows[r[0]] = i + 1
		if i+2 > w.next {
			w.next = i + 2
		}
	}
	return nil
}

// WriteRecord places rec on its filename's row, appending when new.
func (w *SheetWriter) WriteRecord(rec *entity.CardRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row, ok := w.rows[rec.Filename]
	if !ok {
		row = w.next
		w.next++
		w.rows[rec.Filename] = row
	}
	if err := writeRow(w.f, w.sheet, row, rec); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	w.dirty = true
	w.log.Debug("export.sheet.row", "filename", rec.Filename, "row", row, "status", rec.Status, "overwrite", ok)
	return nil
}

// Len returns the number of data rows.
func (w *SheetWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Save writes the workbook to its path, creating the directory if needed.
func (w *SheetWriter) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty {
		return nil
	}

	start := time.Now()
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := w.f.SaveAs(w.path); err != nil {
		w.log.Error("export.sheet.save_failed", "path", w.path, "error", err)
		return fmt.Errorf("save workbook: %w", err)
	}
	w.dirty = false
	w.log.Info("export.sheet.saved", "path", w.path, "rows", len(w.rows), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Close saves pending rows and releases the workbook.
func (w *SheetWriter) Close() error {
	err := w.Save()
	w.mu.Lock()
	defer w.mu.Unlock()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
