package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
)

// SavingProcessor saves the workbook after every image that wrote a row, so
// rows from direct calls land on disk without waiting for a queued job.
type SavingProcessor struct {
	proc   *pipeline.Processor
	sheet  Sheet
	logger *slog.Logger
}

func NewSavingProcessor(proc *pipeline.Processor, sheet Sheet, logger *slog.Logger) *SavingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SavingProcessor{proc: proc, sheet: sheet, logger: logger}
}

func (s *SavingProcessor) ProcessImage(ctx context.Context, path string, force bool) (*pipeline.Result, error) {
	res, err := s.proc.ProcessImage(ctx, path, force)
	s.save(res)
	return res, err
}

func (s *SavingProcessor) ProcessBytes(ctx context.Context, filename string, data []byte, force bool) (*pipeline.Result, error) {
	res, err := s.proc.ProcessBytes(ctx, filename, data, force)
	s.save(res)
	return res, err
}

func (s *SavingProcessor) save(res *pipeline.Result) {
	if res == nil || res.Skipped {
		return
	}
	if err := s.sheet.Save(); err != nil {
		s.logger.Warn("sheet.save_failed", "file", res.Filename, "error", err)
	}
}
