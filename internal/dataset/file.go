package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/rawready/internal/utils"
)

// Format identifies a tabular file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatOf picks a format from a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (want .csv, .tsv or .xlsx)", filepath.Ext(name))
	}
}

// Read decodes r in the given format.
func Read(r io.Reader, format Format, opt ReadOptions) (*Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r, opt)
	case FormatTSV:
		if opt.Delimiter == 0 {
			opt.Delimiter = '\t'
		}
		return ReadCSV(r, opt)
	case FormatXLSX:
		return ReadXLSX(r, opt)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Write encodes t to w in the given format. delim only applies to CSV.
func Write(w io.Writer, t *Table, format Format, delim rune) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t, delim)
	case FormatTSV:
		return WriteCSV(w, t, '\t')
	case FormatXLSX:
		return WriteXLSX(w, t, "")
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// ReadFile loads a table from path, choosing the decoder by extension. The
// table is named after the file.
func ReadFile(path string, opt ReadOptions) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := Read(f, format, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// WriteFile atomically writes t to path, choosing the encoder by extension.
func WriteFile(path string, t *Table, delim rune) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, t, format, delim); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}
