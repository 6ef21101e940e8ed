package clean

import (
	"errors"
	"testing"

	"github.com/KaramelBytes/rawready/internal/canon"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-1-5", "2024-01-05", true},
		{"2024-01-05", "2024-01-05", true},
		{"05/03/24", "2024-03-05", true},
		{"5/3/2024", "2024-03-05", true},
		{"Jan 2, 2006", "2006-01-02", true},
		{"jan 2, 2006", "2006-01-02", true},
		{"2024.12.31", "2024-12-31", true},
		{"31/02/2024", "31/02/2024", false},
		{"yesterday", "yesterday", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseDate(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseDate(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"a@b.c":              true,
		"first.last@ex.co":   true,
		"a@b.c and more":     true,
		"a@b":                false,
		"@b.c":               false,
		"a@@b.c":             false,
		"bob[at]example.com": false,
		"":                   false,
	}
	for in, want := range cases {
		if got := ValidEmail(in); got != want {
			t.Errorf("ValidEmail(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTitleCaseAndStandardizeName(t *testing.T) {
	if got := TitleCase("  alice SMITH "); got != "Alice Smith" {
		t.Errorf("TitleCase = %q", got)
	}
	if got := TitleCase("acme inc."); got != "Acme Inc." {
		t.Errorf("TitleCase = %q", got)
	}
	if got := StandardizeName("  Join Date "); got != "join_date" {
		t.Errorf("StandardizeName = %q", got)
	}
	if got := StandardizeName("First  Name"); got != "first__name" {
		t.Errorf("StandardizeName = %q", got)
	}
}

func TestParseFillMethod(t *testing.T) {
	cases := map[string]FillMethod{
		"":              FillNA,
		"N/A":           FillNA,
		"Mean":          FillMean,
		"median":        FillMedian,
		"Most Frequent": FillMostFrequent,
		"most-frequent": FillMostFrequent,
		"Drop Rows":     FillDropRows,
		"none":          FillNone,
	}
	for in, want := range cases {
		got, err := ParseFillMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseFillMethod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFillMethod("interpolate"); !errors.Is(err, ErrFillMethod) {
		t.Errorf("expected ErrFillMethod, got %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	if err := AllSteps().Validate(); err != nil {
		t.Fatalf("all-steps options invalid: %v", err)
	}
	o := DefaultOptions()
	o.FillMethod = "zero"
	if err := o.Validate(); !errors.Is(err, ErrFillMethod) {
		t.Fatalf("err = %v, want ErrFillMethod", err)
	}
	o = DefaultOptions()
	o.FuzzyThreshold = 0
	if err := o.Validate(); err != nil {
		t.Fatalf("threshold is ignored while fuzzy is off, got %v", err)
	}
	o.Fuzzy = true
	if err := o.Validate(); !errors.Is(err, canon.ErrThreshold) {
		t.Fatalf("err = %v, want ErrThreshold", err)
	}
	o = AllSteps()
	o.FuzzyFold = "soundex"
	if err := o.Validate(); err == nil {
		t.Fatalf("expected fold mode error")
	}
	o = DefaultOptions()
	o.Parallel = -1
	if err := o.Validate(); err == nil {
		t.Fatalf("expected parallel error")
	}
}

func TestSteps(t *testing.T) {
	o := DefaultOptions()
	o.FixDates = true
	o.Fuzzy = true
	got := o.Steps()
	want := []string{"fill:na", "fix_dates", "fuzzy"}
	if len(got) != len(want) {
		t.Fatalf("Steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Steps = %v, want %v", got, want)
		}
	}
}
