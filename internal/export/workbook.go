package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
)

// DefaultSheet names the sheet of workbooks created without a template.
const DefaultSheet = "Medical Cards"

// Headers are the output columns, in order.
var Headers = []string{
	"Filename",
	"Name",
	"Age",
	"Sex",
	"Telephone",
	"Address",
	"Kebele",
	"Date",
	"Status",
	"Notes",
}

const maxNotes = 250

// newWorkbook opens template when it exists, else builds a styled empty workbook.
// It returns the file and the sheet rows are written to.
func newWorkbook(template string) (*excelize.File, string, bool, error) {
	if template != "" {
		if _, err := os.Stat(template); err == nil {
			f, err := excelize.OpenFile(template)
			if err != nil {
				return nil, "", false, fmt.Errorf("open template: %w", err)
			}
			return f, f.GetSheetName(f.GetActiveSheetIndex()), true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, "", false, fmt.Errorf("stat template: %w", err)
		}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), DefaultSheet); err != nil {
		_ = f.Close()
		return nil, "", false, err
	}
	if err := writeHeader(f, DefaultSheet); err != nil {
		_ = f.Close()
		return nil, "", false, err
	}
	return f, DefaultSheet, false, nil
}

func writeHeader(f *excelize.File, sheet string) error {
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 24) // filename
	_ = f.SetColWidth(sheet, "B", "B", 28) // name
	_ = f.SetColWidth(sheet, "C", "D", 8)  // age, sex
	_ = f.SetColWidth(sheet, "E", "E", 14) // telephone
	_ = f.SetColWidth(sheet, "F", "F", 22) // address
	_ = f.SetColWidth(sheet, "G", "G", 8)  // kebele
	_ = f.SetColWidth(sheet, "H", "I", 14) // date, status
	_ = f.SetColWidth(sheet, "J", "J", 60) // notes
	return nil
}

// writeRow writes rec across the row; a parseable age is stored as a number.
func writeRow(f *excelize.File, sheet string, row int, rec *entity.CardRecord) error {
	var age any = rec.Age
	if n, err := strconv.Atoi(rec.Age); err == nil {
		age = n
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return f.SetSheetRow(sheet, cell, &[]any{
		rec.Filename,
		rec.Name,
		age,
		rec.Sex,
		rec.Telephone,
		rec.Address,
		rec.Kebele,
		rec.Date,
		rec.Status,
		truncate(rec.Notes, maxNotes),
	})
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func writeFile(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
