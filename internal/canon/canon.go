// Package canon merges near-duplicate spellings of a column's values into
// canonical representatives.
//
// Values are processed in order of first appearance. Each value is scored
// against the canonical values chosen so far; the best match at or above the
// threshold absorbs it, otherwise the value becomes a new canonical value.
// Equal best scores resolve to the canonical value that was chosen first.
//
// The pass compares every distinct value with every canonical value, so it is
// quadratic in the worst case (no merges). That is fine for the cardinalities
// seen in hand-edited spreadsheets (hundreds to low thousands of distinct
// values per column); larger inputs need a blocking index this package does
// not provide.
package canon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the similarity cutoff used by the cleaning pipeline.
const DefaultThreshold = 0.85

// ErrThreshold is returned when a threshold falls outside (0, 1].
var ErrThreshold = errors.New("threshold must be in (0, 1]")

// Options configures a Canonicalizer.
type Options struct {
	// Threshold is the minimum similarity required to merge into an existing
	// canonical value.
	Threshold float64
	// Fold selects how values are normalized before scoring. It never changes
	// the values stored in the mapping.
	Fold FoldMode
}

// Canonicalizer builds canonical mappings. It holds no state between calls and
// is safe for concurrent use.
type Canonicalizer struct {
	threshold float64
	fold      func(string) string
}

// New validates opt and returns a Canonicalizer.
func New(opt Options) (*Canonicalizer, error) {
	if !(opt.Threshold > 0 && opt.Threshold <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrThreshold, opt.Threshold)
	}
	fold, err := opt.Fold.Func()
	if err != nil {
		return nil, err
	}
	return &Canonicalizer{threshold: opt.Threshold, fold: fold}, nil
}

// Canonicalize maps every value to its canonical representative, comparing
// lowercased values (FoldLowercase). Thresholds outside (0, 1] are clamped
// into range.
func Canonicalize(values []string, threshold float64) Mapping {
	c := &Canonicalizer{threshold: clampThreshold(threshold), fold: foldLower}
	return c.Canonicalize(values)
}

// Threshold reports the configured cutoff.
func (c *Canonicalizer) Threshold() float64 { return c.threshold }

type candidate struct {
	value string
	seq   []string
}

// Canonicalize maps every trimmed value to its canonical representative.
func (c *Canonicalizer) Canonicalize(values []string) Mapping {
	m := make(Mapping, len(values))
	var canon []candidate
	matcher := difflib.NewMatcher(nil, nil)
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if _, seen := m[v]; seen {
			continue
		}
		seq := runeSeq(c.fold(v))
		matcher.SetSeq2(seq)
		best, bestScore := -1, 0.0
		for i := range canon {
			matcher.SetSeq1(canon[i].seq)
			// Both quick ratios are upper bounds of Ratio.
			if matcher.RealQuickRatio() < c.threshold || matcher.QuickRatio() < c.threshold {
				continue
			}
			score := matcher.Ratio()
			if score >= c.threshold && score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 {
			m[v] = canon[best].value
			continue
		}
		m[v] = v
		canon = append(canon, candidate{value: v, seq: seq})
	}
	return m
}

// Similarity returns the matching-subsequence ratio 2*M/T of a and b, computed
// over runes. Two empty strings score 1.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runeSeq(a), runeSeq(b)).Ratio()
}

func runeSeq(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func clampThreshold(t float64) float64 {
	switch {
	case t > 1:
		return 1
	case t <= 0:
		return minThreshold
	default:
		return t
	}
}

// minThreshold stands in for "just above zero": a value with no characters in
// common with any canonical value still scores 0 and stays separate.
const minThreshold = 1e-9
