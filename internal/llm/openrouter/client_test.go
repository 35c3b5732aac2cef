package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medcards-tracker/internal/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey:        "test-key",
		BaseURL:       url,
		Model:         "test/vision-model",
		Temperature:   0.1,
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 10 * time.Millisecond,
	}, quietLogger())
}

func completion(content any) string {
	b, _ := json.Marshal(map[string]any{
		"id":    "gen-1",
		"model": "test/vision-model",
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30},
	})
	return string(b)
}

var testImage = llm.ImageFromBytes("card.png", []byte("\x89PNG fake"))

func TestDescribeImage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultReferer, r.Header.Get("HTTP-Referer"))
		assert.Equal(t, DefaultTitle, r.Header.Get("X-Title"))

		var req chatRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "test/vision-model", req.Model)
		assert.Equal(t, "system", req.Messages[0].Role)

		parts, ok := req.Messages[1].Content.([]any)
		if !assert.True(t, ok) || !assert.Len(t, parts, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		img := parts[1].(map[string]any)
		assert.Equal(t, "image_url", img["type"])
		url := img["image_url"].(map[string]any)["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion("```\n<name>Abebe Kebede</name>\n<age>34</age>\n```"))
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, "<name>Abebe Kebede</name>\n<age>34</age>", reply.Text)
	assert.Equal(t, "test/vision-model", reply.Model)
	assert.Equal(t, 1, reply.Attempts)
	assert.Equal(t, 120, reply.PromptTokens)
	assert.Equal(t, 30, reply.CompletionTokens)
	assert.NotEmpty(t, reply.RequestID)
}

func TestDescribeImage_ContentParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completion([]any{
			map[string]any{"type": "text", "text": "<sex>ወ</sex>"},
			map[string]any{"type": "text", "text": "<kebele>07</kebele>"},
		}))
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, "<sex>ወ</sex>\n<kebele>07</kebele>", reply.Text)
}

func TestDescribeImage_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		_, _ = io.WriteString(w, completion("<age>45</age>"))
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, reply.Attempts)
	assert.Equal(t, "<age>45</age>", reply.Text)
}

func TestDescribeImage_HonorsRetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
		maxDelay   time.Duration
		minGap     time.Duration
		maxGap     time.Duration
	}{
		{name: "waits the advertised delay", retryAfter: "1", maxDelay: 2 * time.Second, minGap: time.Second, maxGap: 3 * time.Second},
		{name: "capped by max delay", retryAfter: "30", maxDelay: 50 * time.Millisecond, minGap: 50 * time.Millisecond, maxGap: 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu    sync.Mutex
				times []time.Time
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				times = append(times, time.Now())
				n := len(times)
				mu.Unlock()
				if n == 1 {
					w.Header().Set("Retry-After", tt.retryAfter)
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				_, _ = io.WriteString(w, completion("<age>45</age>"))
			}))
			defer server.Close()

			c := NewClient(Config{
				APIKey:        "test-key",
				BaseURL:       server.URL,
				Model:         "test/vision-model",
				Timeout:       5 * time.Second,
				MaxRetries:    1,
				RetryDelay:    time.Millisecond,
				MaxRetryDelay: tt.maxDelay,
			}, quietLogger())

			reply, err := c.DescribeImage(context.Background(), testImage)
			require.NoError(t, err)
			assert.Equal(t, 2, reply.Attempts)

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, times, 2)
			gap := times[1].Sub(times[0])
			assert.GreaterOrEqual(t, gap, tt.minGap)
			assert.Less(t, gap, tt.maxGap)
		})
	}
}

func TestDescribeImage_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
	require.Error(t, err)

	var se *llm.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDescribeImage_UnauthorizedIsNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, target: llm.ErrUnauthorized},
		{name: "payment required", status: http.StatusPaymentRequired, target: llm.ErrNoCredits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
			require.ErrorIs(t, err, tt.target)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestDescribeImage_MalformedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no choices", body: `{"choices":[]}`},
		{name: "not json", body: `<html>oops</html>`},
		{name: "null content", body: `{"choices":[{"message":{"content":null}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestDescribeImage_EmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completion("  \n "))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).DescribeImage(context.Background(), testImage)
	require.ErrorIs(t, err, llm.ErrEmptyReply)
}

func TestDescribeImage_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).DescribeImage(ctx, testImage)
	require.ErrorIs(t, err, context.Canceled)
}
