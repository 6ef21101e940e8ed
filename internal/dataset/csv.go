package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned for inputs without a header row.
var ErrNoHeader = errors.New("no header row")

// ErrRaggedRow marks a data row with more fields than the header.
var ErrRaggedRow = errors.New("row has more fields than header")

// RowError reports a problem with a specific input line.
type RowError struct {
	Line   int
	Fields int
	Want   int
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: expected %d fields, saw %d: %v", e.Line, e.Want, e.Fields, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// DefaultMissingTokens are the cell spellings read as null.
var DefaultMissingTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// ReadOptions controls how tabular input is decoded.
type ReadOptions struct {
	// Delimiter for CSV. If 0, ',' is used ('\t' for .tsv files).
	Delimiter rune
	// MissingTokens overrides DefaultMissingTokens when non-nil.
	MissingTokens []string
	// Sheet selects an XLSX sheet by name. Empty uses SheetIndex.
	Sheet string
	// SheetIndex is the 1-based XLSX sheet position (default 1).
	SheetIndex int
}

func (o ReadOptions) missingSet() map[string]struct{} {
	toks := o.MissingTokens
	if toks == nil {
		toks = DefaultMissingTokens
	}
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// ReadCSV decodes a header row and data rows from r.
func ReadCSV(r io.Reader, opt ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	b := newBuilder(header, opt)
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", b.t.NumRows()+1, err)
		}
		line, _ := cr.FieldPos(0)
		if err := b.add(rec, line); err != nil {
			return nil, err
		}
	}
	return b.t, nil
}

// WriteCSV encodes t with a header row. Null cells are written empty.
func WriteCSV(w io.Writer, t *Table, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, t.NumCols())
	for i, r := range t.Rows {
		for j, c := range r {
			rec[j] = c.Value
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type builder struct {
	t       *Table
	missing map[string]struct{}
}

func newBuilder(header []string, opt ReadOptions) *builder {
	return &builder{
		t:       &Table{Header: cleanHeader(header)},
		missing: opt.missingSet(),
	}
}

func (b *builder) add(rec []string, line int) error {
	ncol := len(b.t.Header)
	if len(rec) > ncol {
		return &RowError{Line: line, Fields: len(rec), Want: ncol, Err: ErrRaggedRow}
	}
	row := make(Row, ncol)
	for j, v := range rec {
		if _, isNull := b.missing[v]; isNull {
			continue
		}
		row[j] = Text(v)
	}
	b.t.Rows = append(b.t.Rows, row)
	return nil
}

// cleanHeader names blank columns "Unnamed: i" and suffixes repeats with
// ".1", ".2", ... so every column name is unique.
func cleanHeader(in []string) []string {
	out := make([]string, len(in))
	used := make(map[string]bool, len(in))
	next := make(map[string]int)
	for i, h := range in {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			next[h]++
			name = fmt.Sprintf("%s.%d", h, next[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
