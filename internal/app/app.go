// Package app wires configuration into the store, model client, processor
// and queue shared by the command-line tools and the daemon.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/medcards-tracker/internal/async"
	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/export"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
	"github.com/joseph-ayodele/medcards-tracker/internal/ingest"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm/openrouter"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Files     repository.CardFileRepository
	Jobs      repository.ExtractJobRepository
	Records   repository.CardRecordRepository
	Extractor *extract.Extractor
	Exporter  *export.Service
}

// New opens the store and builds the model-independent components.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	records := repository.NewCardRecordRepository(db, logger)
	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Files:     repository.NewCardFileRepository(db, logger),
		Jobs:      repository.NewExtractJobRepository(db, logger),
		Records:   records,
		Extractor: extract.New(extract.WithCalendar(extract.ParseCalendar(cfg.Extract.Calendar))),
		Exporter:  export.NewService(records, cfg.Paths.ExcelTemplate, logger),
	}, nil
}

// NewModel builds the OpenRouter client; it fails without an API key.
func (a *App) NewModel() (*openrouter.Client, error) {
	if err := a.Config.RequireModel(); err != nil {
		return nil, err
	}
	c := a.Config.LLM
	return openrouter.NewClient(openrouter.Config{
		APIKey:        c.APIKey,
		BaseURL:       c.BaseURL,
		Model:         c.Model,
		Temperature:   c.Temperature,
		MaxTokens:     c.MaxTokens,
		Timeout:       c.Timeout,
		MaxRetries:    c.MaxRetries,
		RetryDelay:    c.RetryDelay,
		MaxRetryDelay: c.MaxRetryDelay,
	}, a.Logger), nil
}

// NewProcessor builds the per-image pipeline. sheet may be nil.
func (a *App) NewProcessor(model llm.ModelClient, sheet pipeline.RecordWriter) (*pipeline.Processor, error) {
	return pipeline.NewProcessor(a.Logger, pipeline.Deps{
		Model:     model,
		Extractor: a.Extractor,
		Files:     a.Files,
		Jobs:      a.Jobs,
		Records:   a.Records,
		Sheet:     sheet,
		ModelName: a.Config.LLM.Model,
	})
}

// NewQueue starts a worker queue sized from the worker config. Extra options
// are applied after the configured ones.
func (a *App) NewQueue(proc async.Processor, opts ...async.Option) *async.ProcessorQueue {
	w := a.Config.Worker
	base := []async.Option{
		async.WithWorkers(w.Workers),
		async.WithQueueSize(w.QueueSize),
		async.WithProcessTimeout(w.ProcessTimeout),
	}
	return async.NewProcessorQueue(proc, a.Logger, append(base, opts...)...)
}

// NewScanner returns a directory scanner honoring the worker config.
func (a *App) NewScanner() *ingest.Scanner {
	return ingest.NewScanner(ingest.ScanOptions{
		Recursive:  a.Config.Worker.Recursive,
		SkipHidden: a.Config.Worker.SkipHidden,
	}, a.Logger)
}

// NewSheet opens the live output workbook.
func (a *App) NewSheet() (*export.SheetWriter, error) {
	return export.NewSheetWriter(a.Config.Paths.ExcelOutput, a.Config.Paths.ExcelTemplate, a.Logger)
}

func (a *App) Close() {
	a.DB.Close()
}
