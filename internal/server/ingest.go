package server

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/async"
	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
)

// ProcessImage processes an uploaded image synchronously. A FAILED run is
// still a successful RPC; the failure reason is in the record notes.
func (s *ExtractionService) ProcessImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filename := strings.TrimSpace(stringField(req, "filename"))
	if filename == "" {
		return nil, common.InvalidArgumentError("filename is required")
	}
	data, err := base64.StdEncoding.DecodeString(stringField(req, "image"))
	if err != nil {
		return nil, common.InvalidArgumentErrorf("image must be base64: %v", err)
	}
	if len(data) == 0 {
		return nil, common.InvalidArgumentError("image is required")
	}
	if len(data) > constants.MaxImageMB<<20 {
		return nil, common.InvalidArgumentErrorf("image exceeds %d MB", constants.MaxImageMB)
	}

	s.logger.Info("server.process_image.start", "filename", filename, "bytes", len(data))
	res, err := s.deps.Processor.ProcessBytes(ctx, filename, data, boolField(req, "force"))
	return s.processed("server.process_image", filename, res, err)
}

// ProcessPath processes an image that already sits on the server's disk.
func (s *ExtractionService) ProcessPath(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := strings.TrimSpace(stringField(req, "path"))
	if path == "" {
		return nil, common.InvalidArgumentError("path is required")
	}
	s.logger.Info("server.process_path.start", "path", path)
	res, err := s.deps.Processor.ProcessImage(ctx, path, boolField(req, "force"))
	return s.processed("server.process_path", path, res, err)
}

func (s *ExtractionService) processed(event, target string, res *pipeline.Result, err error) (*structpb.Struct, error) {
	if res == nil || (err != nil && res.Card == nil) {
		s.logger.Error(event+".failed", "target", target, "error", err)
		return nil, common.StatusFromError(err)
	}
	if err != nil {
		s.logger.Warn(event+".record_failed", "target", target, "error", err)
	} else {
		s.logger.Info(event+".ok",
			"target", target,
			"status", res.Status,
			"skipped", res.Skipped,
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
	}
	return resultStruct(res)
}

// IngestDirectory scans root and queues every matching image; processing
// continues in the background after the call returns.
func (s *ExtractionService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Scanner == nil || s.deps.Queue == nil {
		return nil, status.Error(codes.Unavailable, "directory ingest is not configured")
	}
	root := strings.TrimSpace(stringField(req, "root"))
	if root == "" {
		return nil, common.InvalidArgumentError("root is required")
	}
	force := boolField(req, "force")

	start := time.Now()
	images, stats, err := s.deps.Scanner.Scan(ctx, root)
	if err != nil {
		s.logger.Error("server.ingest_dir.scan_failed", "root", root, "error", err)
		return nil, common.InvalidArgumentErrorf("scan %s: %v", root, err)
	}

	enqueued := 0
	for _, img := range images {
		job := async.Job{Path: img.Path, Force: force, TraceID: common.RequestIDFromContext(ctx)}
		if err := s.deps.Queue.Enqueue(ctx, job); err != nil {
			if errors.Is(err, async.ErrQueueClosed) {
				return nil, common.StatusFromError(common.NewAppError("QUEUE_CLOSED", "server is shutting down", common.ErrUpstream))
			}
			s.logger.Warn("server.ingest_dir.enqueue_stopped", "root", root, "enqueued", enqueued, "error", err)
			return nil, common.StatusFromError(err)
		}
		enqueued++
	}

	s.logger.Info("server.ingest_dir.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"enqueued", enqueued,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ingestStruct(enqueued, stats)
}
