package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavingProcessor_SavesAfterEachImage(t *testing.T) {
	a := newTestApp(t)
	writeImage(t, a.Config.Paths.ImageDir, "a.jpg")
	model := &fakeModel{replies: map[string]string{"a.jpg": completeReply, "b.png": completeReply}}

	sheet, err := a.NewSheet()
	require.NoError(t, err)
	defer func() { _ = sheet.Close() }()
	proc, err := a.NewProcessor(model, sheet)
	require.NoError(t, err)
	sp := NewSavingProcessor(proc, sheet, a.Logger)
	ctx := context.Background()

	res, err := sp.ProcessImage(ctx, filepath.Join(a.Config.Paths.ImageDir, "a.jpg"), false)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", string(res.Status))
	rows := sheetRows(t, a.Config.Paths.ExcelOutput)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.jpg", rows[1][0])

	_, err = sp.ProcessBytes(ctx, "b.png", []byte("png-bytes"), false)
	require.NoError(t, err)
	assert.Len(t, sheetRows(t, a.Config.Paths.ExcelOutput), 3)

	res, err = sp.ProcessImage(ctx, filepath.Join(a.Config.Paths.ImageDir, "a.jpg"), false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 2, sheet.Len())
}
