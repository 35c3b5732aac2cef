package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
	"github.com/joseph-ayodele/medcards-tracker/internal/llm/openrouter"
)

// runllm sends the same card image to the model several times and reports how
// often each field came back valid and how many distinct values were read.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: runllm <image> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 5
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg, err := common.LoadConfig("")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.RequireModel(); err != nil {
		logger.Error("model config", "error", err)
		os.Exit(2)
	}

	img, err := llm.ReadImage(path)
	if err != nil {
		logger.Error("read image", "path", path, "error", err)
		os.Exit(1)
	}

	client := openrouter.NewClient(openrouter.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.LLM.Timeout,
		MaxRetries:    cfg.LLM.MaxRetries,
		RetryDelay:    cfg.LLM.RetryDelay,
		MaxRetryDelay: cfg.LLM.MaxRetryDelay,
	}, logger)
	extractor := extract.New(extract.WithCalendar(extract.ParseCalendar(cfg.Extract.Calendar)))

	base := filepath.Base(path)
	valid := map[extract.Field]int{}
	values := map[extract.Field]map[string]int{}
	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(context.Background(), 2*time.Minute)
		start := time.Now()
		logger.Info("runllm.iter.start", "iter", i, "file", base)

		reply, err := client.DescribeImage(runCtx, img)
		cancelRun()
		if err != nil {
			logger.Error("runllm.iter.error", "iter", i, "error", err)
			continue
		}
		rec, err := extractor.Extract(base, reply.Text)
		if err != nil {
			logger.Error("runllm.iter.extract_error", "iter", i, "error", err)
			continue
		}
		for _, f := range extract.Fields {
			v, ok := rec.Value(f)
			if !ok {
				continue
			}
			valid[f]++
			if values[f] == nil {
				values[f] = map[string]int{}
			}
			values[f][v]++
		}
		logger.Info("runllm.iter.ok",
			"iter", i,
			"complete", rec.Complete(),
			"notes", rec.Notes(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)

		time.Sleep(750 * time.Millisecond)
	}

	for _, f := range extract.Fields {
		logger.Info("runllm.field",
			"field", string(f),
			"valid", valid[f],
			"of", times,
			"distinct_values", len(values[f]),
		)
	}
	logger.Info("done", "file", base, "times", times)
}
