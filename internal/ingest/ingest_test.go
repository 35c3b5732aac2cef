package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func seedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "card1.jpg"), "one")
	writeFile(t, filepath.Join(root, "card2.PNG"), "two")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip me")
	writeFile(t, filepath.Join(root, ".hidden.jpg"), "hidden")
	writeFile(t, filepath.Join(root, "ward-b", "card3.jpeg"), "three")
	writeFile(t, filepath.Join(root, ".cache", "card4.jpg"), "cached")
	return root
}

func names(images []Image) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, img.Filename)
	}
	return out
}

func TestScanner_Recursive(t *testing.T) {
	root := seedTree(t)

	images, stats, err := NewScanner(ScanOptions{Recursive: true, SkipHidden: true}, quietLogger()).
		Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"card1.jpg", "card2.PNG", "card3.jpeg"}, names(images))
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(0), stats.Failed)

	first := images[0]
	assert.Equal(t, "jpg", first.Ext)
	assert.Equal(t, int64(3), first.Size)
	assert.Equal(t, HashBytes([]byte("one")), first.HashHex)
	assert.True(t, filepath.IsAbs(first.Path))
	assert.Equal(t, "png", images[1].Ext)
}

func TestScanner_FlatAndHidden(t *testing.T) {
	root := seedTree(t)

	images, _, err := NewScanner(ScanOptions{Recursive: false, SkipHidden: false}, quietLogger()).
		Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden.jpg", "card1.jpg", "card2.PNG"}, names(images))
}

func TestScanner_CustomExtensions(t *testing.T) {
	root := seedTree(t)

	images, _, err := NewScanner(ScanOptions{
		Recursive:   true,
		SkipHidden:  true,
		AllowedExts: map[string]struct{}{"png": {}},
	}, quietLogger()).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"card2.PNG"}, names(images))
}

func TestScanner_Errors(t *testing.T) {
	s := NewScanner(ScanOptions{}, quietLogger())

	_, _, err := s.Scan(context.Background(), "  ")
	require.Error(t, err)

	_, _, err = s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "card.jpg")
	writeFile(t, file, "x")
	_, _, err = s.Scan(context.Background(), file)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.Scan(ctx, seedTree(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestHelpers(t *testing.T) {
	assert.True(t, AllowedExt(".JPG", nil))
	assert.True(t, AllowedExt("png", nil))
	assert.False(t, AllowedExt(".heic", nil))
	assert.False(t, AllowedExt(".pdf", nil))

	assert.True(t, IsHidden("/a/.b"))
	assert.False(t, IsHidden("/a/b.jpg"))
	assert.False(t, IsHidden("."))

	_, err := Stat(t.TempDir())
	require.Error(t, err)
}

func TestStartWatcher_EmitsNewImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.jpg"), "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    20 * time.Millisecond,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	next := func() string {
		t.Helper()
		select {
		case p := <-events:
			return p
		case err := <-errs:
			t.Fatalf("watcher error: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
		}
		return ""
	}

	assert.Equal(t, "existing.jpg", filepath.Base(next()))

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, "new.png"), "fresh")
	assert.Equal(t, "new.png", filepath.Base(next()))

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{Logger: quietLogger()})
	require.Error(t, err)
}
