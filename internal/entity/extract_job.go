package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractJob represents one model call for one image.
type ExtractJob struct {
	ID           uuid.UUID  `json:"id"`
	Filename     string     `json:"filename"`
	Status       string     `json:"status"`
	ModelName    string     `json:"model_name,omitempty"`
	RawReply     string     `json:"raw_reply,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
