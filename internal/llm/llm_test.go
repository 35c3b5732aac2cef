package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{name: "empty", in: "", want: 0},
		{name: "seconds", in: "5", want: 5 * time.Second},
		{name: "negative", in: "-3", want: 0},
		{name: "http date", in: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past date", in: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{name: "garbage", in: "soon", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.in, now))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: &StatusError{StatusCode: 429}, want: true},
		{name: "server error", err: &StatusError{StatusCode: 503}, want: true},
		{name: "bad request", err: &StatusError{StatusCode: 400}, want: false},
		{name: "unauthorized", err: &StatusError{StatusCode: 401}, want: false},
		{name: "transport", err: errors.New("connection reset"), want: true},
		{name: "cancelled", err: fmt.Errorf("send: %w", context.Canceled), want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "empty reply", err: ErrEmptyReply, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := fmt.Errorf("describe: %w", &StatusError{StatusCode: 402, Body: "no credits", RetryAfter: 0})
	assert.ErrorIs(t, err, ErrNoCredits)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "model status 402")

	_, ok := RetryAfterOf(err)
	assert.False(t, ok)

	d, ok := RetryAfterOf(&StatusError{StatusCode: 429, RetryAfter: 7 * time.Second})
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, d)
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  <age>4</age> ", want: "<age>4</age>"},
		{name: "fenced", in: "```xml\n<age>4</age>\n```", want: "<age>4</age>"},
		{name: "crlf and bom", in: "\ufeff<name>A</name>\r\n<age>4</age>", want: "<name>A</name>\n<age>4</age>"},
		{name: "zero width", in: "<kebele>0\u200b7</kebele>", want: "<kebele>07</kebele>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanReply(tt.in))
		})
	}
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "card.JPG")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))

	req, err := ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "card.JPG", req.Filename)
	assert.Equal(t, "image/jpeg", req.MIMEType)
	assert.Equal(t, "data:image/jpeg;base64,anBlZy1ieXRlcw==", req.DataURL)

	_, err = ReadImage(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadImage(dir)
	assert.Error(t, err)
}

func TestChatCompletionSchema(t *testing.T) {
	schema, err := CompileSchema(ChatCompletionSchema())
	require.NoError(t, err)

	assert.NoError(t, ValidateJSON(schema, []byte(`{"choices":[{"message":{"content":"<age>3</age>"}}]}`)))
	assert.NoError(t, ValidateJSON(schema, []byte(`{"choices":[{"message":{"content":[{"type":"text","text":"x"}]}}]}`)))
	assert.Error(t, ValidateJSON(schema, []byte(`{"choices":[]}`)))
	assert.Error(t, ValidateJSON(schema, []byte(`{"error":{"message":"boom"}}`)))
	assert.Error(t, ValidateJSON(schema, []byte(`not json`)))
}

func TestBuildUserPrompt(t *testing.T) {
	p := BuildUserPrompt("card-7.jpg")
	assert.Contains(t, p, "card-7.jpg")
	for _, tag := range []string{"name", "age", "sex", "telephone", "address", "kebele", "date"} {
		assert.True(t, strings.Contains(p, "<"+tag+">"), "missing tag %s", tag)
	}
}
