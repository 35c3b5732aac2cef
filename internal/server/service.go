package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/async"
	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
	"github.com/joseph-ayodele/medcards-tracker/internal/ingest"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

const maxListLimit = 1000

// ImageProcessor runs the full pipeline for one image.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, path string, force bool) (*pipeline.Result, error)
	ProcessBytes(ctx context.Context, filename string, data []byte, force bool) (*pipeline.Result, error)
}

// Exporter renders stored records as an XLSX workbook.
type Exporter interface {
	ExportRecordsXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error)
}

// DirectoryScanner enumerates candidate images under a root.
type DirectoryScanner interface {
	Scan(ctx context.Context, root string) ([]ingest.Image, ingest.DirStats, error)
}

// Deps are the collaborators of ExtractionService. Queue and Scanner are only
// needed by IngestDirectory.
type Deps struct {
	Extractor *extract.Extractor
	Processor ImageProcessor
	Records   repository.CardRecordRepository
	Exporter  Exporter
	Scanner   DirectoryScanner
	Queue     async.Queue
}

type ExtractionService struct {
	deps   Deps
	logger *slog.Logger
}

var _ ExtractionServer = (*ExtractionService)(nil)

func NewExtractionService(deps Deps, logger *slog.Logger) (*ExtractionService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Processor == nil || deps.Records == nil || deps.Exporter == nil {
		return nil, errors.New("server: processor, records and exporter are required")
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	return &ExtractionService{deps: deps, logger: logger}, nil
}

func (s *ExtractionService) ParseReply(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	reply := req.GetValue()
	if strings.TrimSpace(reply) == "" {
		return nil, common.InvalidArgumentError("reply is required")
	}
	rec, err := s.deps.Extractor.Extract("", reply)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("parse reply: %v", err)
	}
	return extractStruct(rec)
}

func (s *ExtractionService) GetRecord(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	filename := strings.TrimSpace(req.GetValue())
	if filename == "" {
		return nil, common.InvalidArgumentError("filename is required")
	}
	rec, err := s.deps.Records.Get(ctx, filename)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError("no record for " + filename)
		}
		s.logger.Error("server.get_record.failed", "filename", filename, "error", err)
		return nil, common.StatusFromError(err)
	}
	return recordStruct(rec)
}

func (s *ExtractionService) ListRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter, err := listFilter(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	recs, err := s.deps.Records.List(ctx, filter)
	if err != nil {
		s.logger.Error("server.list_records.failed", "status", filter.Status, "error", err)
		return nil, common.StatusFromError(err)
	}
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordMap(r))
	}
	s.logger.Info("server.list_records.ok",
		"status", filter.Status,
		"count", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return structpb.NewStruct(map[string]any{"records": out})
}

func listFilter(req *structpb.Struct) (repository.ListFilter, error) {
	f := repository.ListFilter{
		Status: strings.ToUpper(strings.TrimSpace(stringField(req, "status"))),
		Limit:  intField(req, "limit"),
	}
	if f.Status != "" && !constants.JobStatus(f.Status).Terminal() {
		return f, common.InvalidArgumentErrorf("status %q is not a record status", f.Status)
	}
	if f.Limit < 0 || f.Limit > maxListLimit {
		return f, common.InvalidArgumentErrorf("limit must be between 0 and %d", maxListLimit)
	}
	return f, nil
}
