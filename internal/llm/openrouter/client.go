package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
	"github.com/joseph-ayodele/medcards-tracker/internal/metrics"
)

var envelopeSchema = mustCompile(llm.ChatCompletionSchema())

func mustCompile(m map[string]any) *jsonschema.Schema {
	s, err := llm.CompileSchema(m)
	if err != nil {
		panic(err)
	}
	return s
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// DescribeImage implements llm.ModelClient using a vision chat/completions call.
// Rate limits and server errors are retried with exponential backoff; a
// Retry-After header overrides the computed delay.
func (c *Client) DescribeImage(ctx context.Context, req llm.ImageRequest) (llm.Reply, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.describe.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"file", req.Filename,
		"mime", req.MIMEType,
		"data_url_len", len(req.DataURL),
	)

	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: llm.BuildSystemPrompt()},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: llm.BuildUserPrompt(req.Filename)},
				{Type: "image_url", ImageURL: &imageURL{URL: req.DataURL}},
			}},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	attempts := 0
	raw, err := retry.DoWithData(
		func() ([]byte, error) {
			attempts++
			return llm.SendJSON(ctx, c.http, llm.JSONCall{
				URL:     endpoint,
				Body:    body,
				Headers: headers,
				Attempt: attempts,
			}, c.log)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)+1),
		retry.Delay(c.cfg.RetryDelay),
		retry.MaxDelay(c.cfg.MaxRetryDelay),
		retry.DelayType(retryDelay),
		retry.RetryIf(llm.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			status := 0
			var se *llm.StatusError
			if errors.As(err, &se) {
				status = se.StatusCode
			}
			metrics.ModelRetries.WithLabelValues(c.cfg.Model, strconv.Itoa(status)).Inc()
			c.log.Warn("llm.describe.retry",
				"req_id", rid, "attempt", n+1, "status", status, "error", err,
			)
		}),
	)
	if err != nil {
		metrics.ModelRequestDuration.WithLabelValues(c.cfg.Model, "error").Observe(time.Since(start).Seconds())
		c.log.Error("llm.describe.http_error",
			"req_id", rid, "file", req.Filename, "attempts", attempts, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Reply{RequestID: rid, Attempts: attempts}, err
	}

	reply, err := c.decode(raw)
	reply.RequestID = rid
	reply.Attempts = attempts
	if err != nil {
		metrics.ModelRequestDuration.WithLabelValues(c.cfg.Model, "invalid").Observe(time.Since(start).Seconds())
		c.log.Error("llm.describe.decode_error",
			"req_id", rid, "file", req.Filename, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return reply, err
	}

	metrics.ModelRequestDuration.WithLabelValues(c.cfg.Model, "ok").Observe(time.Since(start).Seconds())
	c.log.Info("llm.describe.ok",
		"req_id", rid,
		"file", req.Filename,
		"model", reply.Model,
		"attempts", attempts,
		"reply_len", len(reply.Text),
		"prompt_tokens", reply.PromptTokens,
		"completion_tokens", reply.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

func (c *Client) decode(raw []byte) (llm.Reply, error) {
	if err := llm.ValidateJSON(envelopeSchema, raw); err != nil {
		return llm.Reply{}, fmt.Errorf("openrouter response: %w", err)
	}
	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.Reply{}, fmt.Errorf("decode openrouter response: %w", err)
	}
	text, err := contentText(cc.Choices[0].Message.Content)
	if err != nil {
		return llm.Reply{}, err
	}
	text = llm.CleanReply(text)
	if text == "" {
		return llm.Reply{}, llm.ErrEmptyReply
	}
	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	return llm.Reply{
		Text:             text,
		Model:            model,
		PromptTokens:     cc.Usage.PromptTokens,
		CompletionTokens: cc.Usage.CompletionTokens,
	}, nil
}

// contentText accepts either a plain string or a list of typed parts.
func contentText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("decode message content: %w", err)
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

func retryDelay(n uint, err error, cfg *retry.Config) time.Duration {
	if d, ok := llm.RetryAfterOf(err); ok {
		return d
	}
	return retry.BackOffDelay(n, err, cfg)
}
