// Package dataset holds the in-memory table the cleaning pipeline works on,
// plus CSV and XLSX readers/writers for it.
package dataset

import (
	"strconv"
	"strings"
)

// Cell is a single table value. Null cells came from empty or missing-token
// source cells; their Value is always empty.
type Cell struct {
	Value string
	Valid bool
}

// Text returns a non-null cell.
func Text(s string) Cell { return Cell{Value: s, Valid: true} }

// Null returns a null cell.
func Null() Cell { return Cell{} }

// Row is one table record, with one cell per header column.
type Row []Cell

// Table is a header plus rows. All rows have len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   []Row
}

// Stats are the headline counts shown before and after a cleaning run.
type Stats struct {
	Rows       int `json:"rows" yaml:"rows"`
	Nulls      int `json:"nulls" yaml:"nulls"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Header) }

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Header: append([]string(nil), t.Header...), Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// ColumnIndex returns the index of the column named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of column j in row order.
func (t *Table) Column(j int) []Cell {
	out := make([]Cell, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out
}

// ColumnValues returns the non-null values of column j in row order.
func (t *Table) ColumnValues(j int) []string {
	var out []string
	for _, r := range t.Rows {
		if r[j].Valid {
			out = append(out, r[j].Value)
		}
	}
	return out
}

// ColumnNulls counts the null cells in column j.
func (t *Table) ColumnNulls(j int) int {
	n := 0
	for _, r := range t.Rows {
		if !r[j].Valid {
			n++
		}
	}
	return n
}

// IsNumeric reports whether every non-null cell of column j parses as a
// number. A column with no values is not numeric.
func (t *Table) IsNumeric(j int) bool {
	seen := false
	for _, r := range t.Rows {
		if !r[j].Valid {
			continue
		}
		if _, ok := ParseNumber(r[j].Value); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// ParseNumber parses a decimal or scientific number, ignoring surrounding
// whitespace.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatNumber renders f in its shortest round-tripping form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NullCount counts null cells across the table.
func (t *Table) NullCount() int {
	n := 0
	for _, r := range t.Rows {
		for _, c := range r {
			if !c.Valid {
				n++
			}
		}
	}
	return n
}

// RowKey returns a key that is equal for two rows exactly when every cell is
// equal (nulls equal nulls, and never equal the empty string).
func RowKey(r Row) string {
	var b strings.Builder
	for _, c := range r {
		if c.Valid {
			b.WriteByte('v')
			b.WriteString(strconv.Itoa(len(c.Value)))
			b.WriteByte(':')
			b.WriteString(c.Value)
		} else {
			b.WriteByte('n')
		}
	}
	return b.String()
}

// DuplicateCount counts rows equal to an earlier row.
func (t *Table) DuplicateCount() int {
	seen := make(map[string]struct{}, len(t.Rows))
	n := 0
	for _, r := range t.Rows {
		k := RowKey(r)
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}

// Stats computes the headline counts for t.
func (t *Table) Stats() Stats {
	return Stats{Rows: t.NumRows(), Nulls: t.NullCount(), Duplicates: t.DuplicateCount()}
}
