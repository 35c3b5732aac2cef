package entity

import "time"

// CardFile is a card image seen on disk or uploaded, keyed by filename.
type CardFile struct {
	Filename    string    `json:"filename"`
	SourcePath  string    `json:"source_path"`
	FileExt     string    `json:"file_ext"`
	FileSize    int64     `json:"file_size"`
	ContentHash string    `json:"content_hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
