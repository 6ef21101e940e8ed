package dataset

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name used when writing workbooks.
const DefaultSheet = "Cleaned Data"

// ReadXLSX decodes the selected sheet of a workbook. The first row is the
// header. Fully empty rows are skipped, short rows are padded with nulls.
func ReadXLSX(r io.Reader, opt ReadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opt)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	var b *builder
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		if b == nil {
			b = newBuilder(row, opt)
			continue
		}
		if err := b.add(row, i+1); err != nil {
			return nil, err
		}
	}
	if b == nil {
		return nil, ErrNoHeader
	}
	return b.t, nil
}

func pickSheet(sheets []string, opt ReadOptions) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("no sheets found in workbook")
	}
	if opt.Sheet != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found.\nAvailable sheets: %s", opt.Sheet, strings.Join(sheets, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))
	}
	return sheets[idx-1], nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

// WriteXLSX encodes t as a single-sheet workbook with a bold header row.
// Columns whose values are all numeric are written as numbers, except cells a
// float cannot reproduce ("01234", "1e3", "inf"), which keep their text. Null
// cells are left empty.
func WriteXLSX(w io.Writer, t *Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for j, h := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}
	numeric := make([]bool, t.NumCols())
	for j := range numeric {
		numeric[j] = t.IsNumeric(j)
	}
	for i, r := range t.Rows {
		for j, c := range r {
			if !c.Valid {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if x, ok := exactNumber(c.Value); numeric[j] && ok {
				err = f.SetCellFloat(sheet, cell, x, -1, 64)
			} else {
				err = f.SetCellStr(sheet, cell, c.Value)
			}
			if err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// exactNumber reports whether v is a finite number whose shortest form is v
// itself, so writing it as a float loses nothing.
func exactNumber(v string) (float64, bool) {
	x, ok := ParseNumber(v)
	if !ok || math.IsInf(x, 0) || math.IsNaN(x) {
		return 0, false
	}
	return x, FormatNumber(x) == strings.TrimSpace(v)
}
