package ingest

import (
	"time"
)

// Image is one card photograph found on disk.
type Image struct {
	Path     string // absolute path
	Filename string // base name, the record key
	Ext      string // lowercased, without '.'
	Size     int64
	HashHex  string // sha256 of the file contents
	ModTime  time.Time
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// ScanOptions controls directory enumeration.
type ScanOptions struct {
	Recursive   bool
	SkipHidden  bool
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
}
