package server

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
)

func (s *ExtractionService) ExportWorkbook(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	filter, err := listFilter(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	xlsx, err := s.deps.Exporter.ExportRecordsXLSX(ctx, filter)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "status", filter.Status, "error", err)
		return nil, common.StatusFromError(err)
	}
	s.logger.Info("server.export.ok",
		"status", filter.Status,
		"bytes", len(xlsx),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return wrapperspb.Bytes(xlsx), nil
}
