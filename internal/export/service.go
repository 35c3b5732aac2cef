package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

// Service produces XLSX bytes from the stored card records.
type Service struct {
	records  repository.CardRecordRepository
	template string
	logger   *slog.Logger
}

func NewService(records repository.CardRecordRepository, template string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, template: template, logger: logger}
}

// ExportRecordsXLSX returns a workbook (as bytes) holding every stored record
// matching filter, one row per filename in filename order.
func (s *Service) ExportRecordsXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f, sheet, _, err := newWorkbook(s.template)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, r := range recs {
		if err := writeRow(f, sheet, i+2, r); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"status", filter.Status,
		"rows", len(recs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportToFile writes the export to path.
func (s *Service) ExportToFile(ctx context.Context, filter repository.ListFilter, path string) (int, error) {
	b, err := s.ExportRecordsXLSX(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := writeFile(path, b); err != nil {
		return 0, err
	}
	return len(b), nil
}
