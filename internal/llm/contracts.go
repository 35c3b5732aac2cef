package llm

import "context"

// ImageRequest is one card photo to describe.
type ImageRequest struct {
	Filename string // identifier used in logs and records
	MIMEType string
	DataURL  string // data:<mime>;base64,<payload>
}

// Reply is the model's raw answer for one image.
type Reply struct {
	Text             string
	Model            string
	RequestID        string
	Attempts         int
	PromptTokens     int
	CompletionTokens int
}

// ModelClient is the interface our pipeline depends on.
type ModelClient interface {
	DescribeImage(ctx context.Context, req ImageRequest) (Reply, error)
}
