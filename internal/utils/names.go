package utils

import (
	"path/filepath"
	"strings"
)

// DefaultOutputName is used when a cleaned table has no source file name.
const DefaultOutputName = "cleaned_data.csv"

// CleanedName derives the output file name for a cleaned copy of src:
// "people.xlsx" becomes "people_cleaned.xlsx". ext, when set, replaces the
// source extension.
func CleanedName(src, ext string) string {
	base := filepath.Base(src)
	if src == "" || base == "." || base == string(filepath.Separator) {
		if ext != "" && ext != ".csv" {
			return strings.TrimSuffix(DefaultOutputName, ".csv") + ext
		}
		return DefaultOutputName
	}
	srcExt := filepath.Ext(base)
	if ext == "" {
		ext = srcExt
	}
	return strings.TrimSuffix(base, srcExt) + "_cleaned" + ext
}

// CleanedPath is CleanedName placed next to src.
func CleanedPath(src, ext string) string {
	return filepath.Join(filepath.Dir(src), CleanedName(src, ext))
}
