package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/medcards-tracker/internal/async"
	"github.com/joseph-ayodele/medcards-tracker/internal/export"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
	"github.com/joseph-ayodele/medcards-tracker/internal/ingest"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

const completeReply = `<name>Abebe Kebede</name>
<age>34</age>
<sex>ወ</sex>
<telephone>+251911223344</telephone>
<address>Bahir Dar</address>
<kebele>7</kebele>
<date>05/03/2024</date>`

type fakeModel struct {
	mu      sync.Mutex
	replies map[string]string
}

func (m *fakeModel) DescribeImage(_ context.Context, req llm.ImageRequest) (llm.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, ok := m.replies[req.Filename]
	if !ok {
		return llm.Reply{Attempts: 1}, &llm.StatusError{StatusCode: 401, Body: "bad key"}
	}
	return llm.Reply{Text: reply, Model: "fake/vision", Attempts: 1}, nil
}

type testEnv struct {
	client *ExtractionClient
	model  *fakeModel
	dir    string
	done   chan async.Outcome
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: repository.InMemoryDSN}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	records := repository.NewCardRecordRepository(db, logger)
	env := &testEnv{
		model: &fakeModel{replies: map[string]string{}},
		dir:   t.TempDir(),
		done:  make(chan async.Outcome, 16),
	}
	proc, err := pipeline.NewProcessor(logger, pipeline.Deps{
		Model:     env.model,
		Extractor: extract.New(),
		Files:     repository.NewCardFileRepository(db, logger),
		Jobs:      repository.NewExtractJobRepository(db, logger),
		Records:   records,
		ModelName: "fake/vision",
	})
	require.NoError(t, err)

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(2),
		async.WithOnDone(func(o async.Outcome) { env.done <- o }),
	)

	svc, err := NewExtractionService(Deps{
		Processor: proc,
		Records:   records,
		Exporter:  export.NewService(records, "", logger),
		Scanner:   ingest.NewScanner(ingest.ScanOptions{Recursive: true, SkipHidden: true}, logger),
		Queue:     queue,
	}, logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryLogging(logger)))
	RegisterExtractionServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	})
	env.client = NewExtractionClient(conn)
	return env
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestParseReply(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.client.ParseReply(context.Background(), wrapperspb.String(completeReply))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "COMPLETE", m["status"])
	fields := m["fields"].(map[string]any)
	assert.Equal(t, "0911223344", fields["telephone"].(map[string]any)["value"])
	assert.Equal(t, "M", fields["sex"].(map[string]any)["value"])
	assert.Equal(t, "ok", fields["date"].(map[string]any)["outcome"])
}

func TestParseReply_Empty(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ParseReply(context.Background(), wrapperspb.String("  "))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProcessImage_Upload(t *testing.T) {
	env := newTestEnv(t)
	env.model.replies["upload.png"] = completeReply
	ctx := context.Background()

	out, err := env.client.ProcessImage(ctx, mustStruct(t, map[string]any{
		"filename": "upload.png",
		"image":    base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	}))
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "COMPLETE", m["status"])
	assert.Equal(t, false, m["skipped"])
	assert.Equal(t, "Abebe Kebede", m["record"].(map[string]any)["name"])

	got, err := env.client.GetRecord(ctx, wrapperspb.String("upload.png"))
	require.NoError(t, err)
	assert.Equal(t, "07", got.AsMap()["kebele"])
	assert.Equal(t, "2024-03-05", got.AsMap()["date"])
}

func TestProcessImage_Rejected(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		req  map[string]any
	}{
		{name: "missing filename", req: map[string]any{"image": base64.StdEncoding.EncodeToString([]byte("x"))}},
		{name: "bad base64", req: map[string]any{"filename": "a.png", "image": "%%%"}},
		{name: "empty image", req: map[string]any{"filename": "a.png"}},
		{name: "unsupported extension", req: map[string]any{"filename": "a.gif", "image": base64.StdEncoding.EncodeToString([]byte("x"))}},
		{name: "path in filename", req: map[string]any{"filename": "../a.png", "image": base64.StdEncoding.EncodeToString([]byte("x"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.ProcessImage(context.Background(), mustStruct(t, tt.req))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestProcessPath_ModelFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "rejected.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))

	out, err := env.client.ProcessPath(context.Background(), mustStruct(t, map[string]any{"path": path}))
	require.NoError(t, err)
	assert.Equal(t, "FAILED", out.AsMap()["status"])

	got, err := env.client.GetRecord(context.Background(), wrapperspb.String("rejected.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "FAILED", got.AsMap()["status"])
	assert.NotEmpty(t, got.AsMap()["notes"])
}

func TestGetRecord_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.GetRecord(context.Background(), wrapperspb.String("nope.jpg"))
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, "no record for nope.jpg", status.Convert(err).Message())
}

func TestUnaryLogging_RecoversPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	intercept := UnaryLogging(logger)
	info := &grpc.UnaryServerInfo{FullMethod: GetRecordMethod}

	resp, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message())
}

func TestIngestDirectory_ListAndExport(t *testing.T) {
	env := newTestEnv(t)
	env.model.replies["a.jpg"] = completeReply
	env.model.replies["b.png"] = "<name>Almaz</name>"
	for _, name := range []string{"a.jpg", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(env.dir, name), []byte(name), 0o644))
	}
	ctx := context.Background()

	out, err := env.client.IngestDirectory(ctx, mustStruct(t, map[string]any{"root": env.dir}))
	require.NoError(t, err)
	assert.Equal(t, float64(2), out.AsMap()["enqueued"])
	assert.Equal(t, float64(1), out.AsMap()["skipped"])

	for range 2 {
		select {
		case o := <-env.done:
			require.NoError(t, o.Err)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for queued images")
		}
	}

	list, err := env.client.ListRecords(ctx, mustStruct(t, map[string]any{}))
	require.NoError(t, err)
	recs := list.AsMap()["records"].([]any)
	require.Len(t, recs, 2)
	assert.Equal(t, "a.jpg", recs[0].(map[string]any)["filename"])

	review, err := env.client.ListRecords(ctx, mustStruct(t, map[string]any{"status": "needs_review"}))
	require.NoError(t, err)
	require.Len(t, review.AsMap()["records"].([]any), 1)

	_, err = env.client.ListRecords(ctx, mustStruct(t, map[string]any{"status": "RUNNING"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	xlsx, err := env.client.ExportWorkbook(ctx, mustStruct(t, map[string]any{}))
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsx.GetValue()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.DefaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.Headers, rows[0])
}

func TestIngestDirectory_MissingRoot(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.IngestDirectory(context.Background(), mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.IngestDirectory(context.Background(), mustStruct(t, map[string]any{"root": filepath.Join(env.dir, "missing")}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
