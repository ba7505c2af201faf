// internal/app/system/xlsxexport/xlsxexport.go
// Package xlsxexport writes and reads simple one-sheet workbooks: a header
// row followed by one row per record.
package xlsxexport

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of an .xlsx file.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column maps a record to one cell.
type Column[T any] struct {
	Header string
	Width  float64 // 0 keeps the default
	Value  func(T) any
}

// Write renders rows into a workbook with a single sheet and streams it to w.
func Write[T any](w io.Writer, sheet string, cols []Column[T], rows []T) error {
	if len(cols) == 0 {
		return errors.New("xlsx: no columns")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("xlsx: sheet name: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}
	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, c.Header); err != nil {
			return fmt.Errorf("xlsx: header %s: %w", cell, err)
		}
		if c.Width > 0 {
			name, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(sheet, name, name, c.Width)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	_ = f.SetCellStyle(sheet, "A1", last, bold)

	for r, rec := range rows {
		for i, c := range cols {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheet, cell, c.Value(rec)); err != nil {
				return fmt.Errorf("xlsx: cell %s: %w", cell, err)
			}
		}
	}
	return f.Write(w)
}

// ReadRows reads the first sheet of the workbook in r. The first row names
// the columns (trimmed, lower-cased, spaces turned into underscores); each
// following non-blank row becomes a map keyed by those names.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("xlsx: read %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []map[string]string{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(headers))
		blank := true
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != "" {
				blank = false
			}
			rec[h] = v
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}
