package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
)

// MaxResponseBytes caps how much of a model response is read.
const MaxResponseBytes = 4 << 20

// JSONCall is one POST of a JSON body to a provider endpoint.
type JSONCall struct {
	URL     string
	Body    any
	Headers map[string]string // applied after Content-Type, so callers may override it
	Attempt int               // for logging only
}

// SendJSON posts call.Body and returns the raw response body. It knows nothing
// about any provider. A non-2xx answer is returned as *StatusError; the body
// is dropped because StatusError carries it.
func SendJSON(ctx context.Context, client *http.Client, call JSONCall, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := uuid.NewString()
	start := time.Now()
	file := common.FilenameFromContext(ctx)

	payload, err := json.Marshal(call.Body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	logger.Debug("llm.http.request",
		"req_id", reqID,
		"file", file,
		"attempt", call.Attempt,
		"url", call.URL,
		"content_length", len(payload),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("llm.http.send_error",
			"req_id", reqID, "file", file, "attempt", call.Attempt, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	logger.Info("llm.http.response",
		"req_id", reqID,
		"file", file,
		"attempt", call.Attempt,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	return raw, nil
}
