package clean

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/rawready/internal/canon"
)

// FillMethod selects how missing cells are handled.
type FillMethod string

const (
	FillNone         FillMethod = "none"
	FillNA           FillMethod = "na"
	FillMean         FillMethod = "mean"
	FillMedian       FillMethod = "median"
	FillMostFrequent FillMethod = "most_frequent"
	FillDropRows     FillMethod = "drop_rows"
)

// FillValue is written into missing cells by FillNA.
const FillValue = "N/A"

// ErrFillMethod is returned for unknown fill methods.
var ErrFillMethod = errors.New("unknown fill method")

// ParseFillMethod accepts the canonical names as well as the display labels
// ("N/A", "Most Frequent", "Drop Rows", ...). Empty input means FillNA.
func ParseFillMethod(s string) (FillMethod, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	switch k {
	case "", "na", "n/a":
		return FillNA, nil
	case "none", "skip":
		return FillNone, nil
	case "mean":
		return FillMean, nil
	case "median":
		return FillMedian, nil
	case "most_frequent", "mode":
		return FillMostFrequent, nil
	case "drop_rows", "drop":
		return FillDropRows, nil
	}
	return "", fmt.Errorf("%w %q (want none|na|mean|median|most_frequent|drop_rows)", ErrFillMethod, s)
}

// Options is the configuration for a single cleaning run.
type Options struct {
	FillMethod         FillMethod     `json:"fill_method"`
	DropDuplicates     bool           `json:"drop_duplicates"`
	StandardizeColumns bool           `json:"standardize_columns"`
	NormalizeText      bool           `json:"normalize_text"`
	FixDates           bool           `json:"fix_dates"`
	ValidateEmails     bool           `json:"validate_emails"`
	Fuzzy              bool           `json:"fuzzy"`
	FuzzyThreshold     float64        `json:"fuzzy_threshold"`
	FuzzyFold          canon.FoldMode `json:"fuzzy_fold"`
	// Parallel bounds how many columns the fuzzy step works on at once.
	// 0 means GOMAXPROCS.
	Parallel int `json:"parallel"`
}

// DefaultOptions fills missing cells with N/A and leaves every other step off.
func DefaultOptions() Options {
	return Options{
		FillMethod:     FillNA,
		FuzzyThreshold: canon.DefaultThreshold,
		FuzzyFold:      canon.FoldLowercase,
	}
}

// AllSteps returns DefaultOptions with every optional step enabled.
func AllSteps() Options {
	o := DefaultOptions()
	o.DropDuplicates = true
	o.StandardizeColumns = true
	o.NormalizeText = true
	o.FixDates = true
	o.ValidateEmails = true
	o.Fuzzy = true
	return o
}

// Validate checks the fill method and, when fuzzy matching is on, the
// threshold and fold mode.
func (o Options) Validate() error {
	switch o.FillMethod {
	case FillNone, FillNA, FillMean, FillMedian, FillMostFrequent, FillDropRows:
	default:
		return fmt.Errorf("%w %q", ErrFillMethod, o.FillMethod)
	}
	if o.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0, got %d", o.Parallel)
	}
	if !o.Fuzzy {
		return nil
	}
	if _, err := canon.New(canon.Options{Threshold: o.FuzzyThreshold, Fold: o.FuzzyFold}); err != nil {
		return fmt.Errorf("fuzzy: %w", err)
	}
	return nil
}

// Steps lists the enabled steps in execution order.
func (o Options) Steps() []string {
	var out []string
	if o.FillMethod != FillNone {
		out = append(out, "fill:"+string(o.FillMethod))
	}
	for _, s := range []struct {
		on   bool
		name string
	}{
		{o.DropDuplicates, "drop_duplicates"},
		{o.StandardizeColumns, "standardize_columns"},
		{o.NormalizeText, "normalize_text"},
		{o.FixDates, "fix_dates"},
		{o.ValidateEmails, "validate_emails"},
		{o.Fuzzy, "fuzzy"},
	} {
		if s.on {
			out = append(out, s.name)
		}
	}
	return out
}
