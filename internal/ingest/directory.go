package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/medcards-tracker/constants"
)

// Scanner enumerates card images below a root directory.
type Scanner struct {
	opts ScanOptions
	log  *slog.Logger
}

func NewScanner(opts ScanOptions, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{opts: opts, log: logger}
}

// Scan walks root and returns every allowed image in lexical path order.
// Unreadable entries are counted as failed and skipped; only a missing root
// or a cancelled context aborts the walk.
func (s *Scanner) Scan(ctx context.Context, root string) ([]Image, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, DirStats{}, fmt.Errorf("abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, DirStats{}, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, DirStats{}, fmt.Errorf("%s is not a directory", abs)
	}

	start := time.Now()
	var images []Image
	var stats DirStats

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == abs {
			return walkErr
		}
		stats.Scanned++
		if walkErr != nil {
			s.log.Warn("ingest.scan.entry_error", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if s.opts.SkipHidden && IsHidden(path) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !s.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !AllowedExt(filepath.Ext(path), s.opts.AllowedExts) {
			stats.Skipped++
			return nil
		}
		stats.Matched++

		img, err := Stat(path)
		if err != nil {
			s.log.Warn("ingest.scan.read_error", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		images = append(images, img)
		return nil
	})
	if err != nil {
		return images, stats, fmt.Errorf("walk: %w", err)
	}

	s.log.Info("ingest.scan.ok",
		"root", abs,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return images, stats, nil
}

// Stat describes a single image file, hashing its contents.
func Stat(path string) (Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Image{}, fmt.Errorf("abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Image{}, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("%s is a directory", abs)
	}
	hash, err := HashFile(abs)
	if err != nil {
		return Image{}, err
	}
	return Image{
		Path:     abs,
		Filename: filepath.Base(abs),
		Ext:      constants.NormalizeExt(filepath.Ext(abs)),
		Size:     info.Size(),
		HashHex:  hash,
		ModTime:  info.ModTime().UTC(),
	}, nil
}
