package canon

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldMode selects the comparison normalization applied before scoring.
type FoldMode string

const (
	// FoldNone compares values exactly as written (after trimming).
	FoldNone FoldMode = "none"
	// FoldLowercase compares Unicode-lowercased values.
	FoldLowercase FoldMode = "lowercase"
	// FoldLowercaseASCII lowercases and strips combining accents (Élodie -> elodie).
	FoldLowercaseASCII FoldMode = "lowercase_ascii"
)

func foldNone(s string) string { return s }

func foldLower(s string) string { return strings.ToLower(s) }

func foldLowerASCII(s string) string {
	// Chained transformers carry buffers and cannot be shared across goroutines.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Func returns the normalizer for the mode. The empty mode means FoldNone.
func (f FoldMode) Func() (func(string) string, error) {
	switch f {
	case "", FoldNone:
		return foldNone, nil
	case FoldLowercase:
		return foldLower, nil
	case FoldLowercaseASCII:
		return foldLowerASCII, nil
	default:
		return nil, fmt.Errorf("unknown fold mode %q (use none, lowercase or lowercase_ascii)", string(f))
	}
}

// ParseFoldMode accepts the config/flag spelling of a fold mode.
func ParseFoldMode(s string) (FoldMode, error) {
	m := FoldMode(strings.ToLower(strings.TrimSpace(s)))
	if _, err := m.Func(); err != nil {
		return "", err
	}
	if m == "" {
		m = FoldNone
	}
	return m, nil
}
