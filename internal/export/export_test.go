package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord(filename string) *entity.CardRecord {
	return &entity.CardRecord{
		Filename:  filename,
		Name:      "Abebe Kebede",
		Age:       "34",
		Sex:       "M",
		Telephone: "0911223344",
		Address:   "Bahir Dar",
		Kebele:    "07",
		Date:      "2024-03-05",
		Status:    "COMPLETE",
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	return rows
}

func TestSheetWriter_WriteOverwriteAndResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cards.xlsx")

	w, err := NewSheetWriter(path, "", quietLogger())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(sampleRecord("card1.jpg")))
	require.NoError(t, w.WriteRecord(entity.Failed("card2.jpg", "model call failed: status 502")))

	fixed := sampleRecord("card1.jpg")
	fixed.Age = "35"
	require.NoError(t, w.WriteRecord(fixed))
	assert.Equal(t, 2, w.Len())
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, []string{"card1.jpg", "Abebe Kebede", "35", "M", "0911223344", "Bahir Dar", "07", "2024-03-05", "COMPLETE"}, rows[1])
	assert.Equal(t, "card2.jpg", rows[2][0])
	assert.Equal(t, "FAILED", rows[2][8])
	assert.Equal(t, "model call failed: status 502", rows[2][9])

	// Reopening resumes the existing rows.
	w, err = NewSheetWriter(path, "", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, w.Len())
	ok := sampleRecord("card2.jpg")
	require.NoError(t, w.WriteRecord(ok))
	require.NoError(t, w.WriteRecord(sampleRecord("card3.jpg")))
	require.NoError(t, w.Close())

	rows = readRows(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, "COMPLETE", rows[2][8])
	assert.Equal(t, "card3.jpg", rows[3][0])
}

func TestSheetWriter_Template(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "template.xlsx")

	tf := excelize.NewFile()
	require.NoError(t, tf.SetSheetName("Sheet1", "Patients"))
	require.NoError(t, tf.SetSheetRow("Patients", "A1", &[]any{"File", "Patient", "Age"}))
	require.NoError(t, tf.SaveAs(template))
	require.NoError(t, tf.Close())

	out := filepath.Join(dir, "out.xlsx")
	w, err := NewSheetWriter(out, template, quietLogger())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(sampleRecord("card1.jpg")))
	require.NoError(t, w.Close())

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Patients")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"File", "Patient", "Age"}, rows[0])
	assert.Equal(t, "card1.jpg", rows[1][0])
	assert.Equal(t, "34", rows[1][2])
}

func TestSheetWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.xlsx")
	w, err := NewSheetWriter(path, "", quietLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.WriteRecord(sampleRecord(fmt.Sprintf("card%02d.jpg", i))))
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	assert.Len(t, rows, 21)
	seen := map[string]bool{}
	for _, r := range rows[1:] {
		seen[r[0]] = true
	}
	assert.Len(t, seen, 20)
}

func TestSheetWriter_RequiresPath(t *testing.T) {
	_, err := NewSheetWriter("", "", quietLogger())
	require.Error(t, err)
}

func TestService_ExportRecordsXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: repository.InMemoryDSN}, quietLogger())
	require.NoError(t, err)
	defer db.Close()

	records := repository.NewCardRecordRepository(db, quietLogger())
	require.NoError(t, records.Upsert(ctx, sampleRecord("b.jpg")))
	require.NoError(t, records.Upsert(ctx, entity.Failed("a.jpg", "unreadable image")))

	svc := NewService(records, "", quietLogger())
	b, err := svc.ExportRecordsXLSX(ctx, repository.ListFilter{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(DefaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a.jpg", rows[1][0])
	assert.Equal(t, "FAILED", rows[1][8])
	assert.Equal(t, "b.jpg", rows[2][0])

	b, err = svc.ExportRecordsXLSX(ctx, repository.ListFilter{Status: "COMPLETE"})
	require.NoError(t, err)
	f2, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f2.Close() }()
	rows, err = f2.GetRows(DefaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	path := filepath.Join(t.TempDir(), "exports", "all.xlsx")
	n, err := svc.ExportToFile(ctx, repository.ListFilter{}, path)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Len(t, readRows(t, path), 3)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "ሰላ…", truncate("ሰላምታ", 3))
}
