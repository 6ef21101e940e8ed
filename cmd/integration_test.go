package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/rawready/internal/dataset"
)

// resetFlags puts every flag back to its default so state from one
// invocation does not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is execute for commands that must succeed.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// isolate points HOME at a fresh temp dir so config and audit files stay
// inside the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestCLI_SampleCleanProfile(t *testing.T) {
	home := isolate(t)
	messy := filepath.Join(home, "messy.csv")

	out := runCmd(t, "sample", "-n", "60", "--seed", "3", "-o", messy)
	if !strings.Contains(out, "✓ Wrote 60 rows") {
		t.Fatalf("unexpected sample output: %q", out)
	}

	report := filepath.Join(home, "report.md")
	changes := filepath.Join(home, "changes.json")
	out = runCmd(t, "clean", messy, "--all", "--report", report, "--changes", changes)
	if !strings.Contains(out, "[CLEANING SUMMARY]") {
		t.Fatalf("summary missing from output:\n%s", out)
	}

	cleaned := filepath.Join(home, "messy_cleaned.csv")
	tbl, err := dataset.ReadFile(cleaned, dataset.ReadOptions{MissingTokens: []string{""}})
	if err != nil {
		t.Fatalf("read cleaned: %v", err)
	}
	if got := tbl.Header[0]; got != "customer_id" {
		t.Fatalf("header not standardized: %v", tbl.Header)
	}
	if n := tbl.NullCount(); n != 0 {
		t.Fatalf("expected no empty cells, got %d", n)
	}
	if n := tbl.DuplicateCount(); n != 0 {
		t.Fatalf("expected no duplicate rows, got %d", n)
	}

	body, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(body), "[CLEANING SUMMARY]") {
		t.Fatalf("report missing summary:\n%s", body)
	}
	raw, err := os.ReadFile(changes)
	if err != nil {
		t.Fatalf("read changes: %v", err)
	}
	var log []map[string]any
	if err := json.Unmarshal(raw, &log); err != nil {
		t.Fatalf("changes not JSON: %v", err)
	}
	if len(log) == 0 {
		t.Fatalf("expected recorded changes")
	}

	profile := filepath.Join(home, "profile.md")
	runCmd(t, "profile", cleaned, "-o", profile)
	md, err := os.ReadFile(profile)
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if !strings.Contains(string(md), "[DATASET SUMMARY]") || !strings.Contains(string(md), "messy_cleaned.csv") {
		t.Fatalf("unexpected profile:\n%s", md)
	}
}

func TestCLI_CleanFlags(t *testing.T) {
	home := isolate(t)
	src := filepath.Join(home, "people.csv")
	csv := "Name,Score\nann,1\nann,1\nbob,\n"
	if err := os.WriteFile(src, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	dst := filepath.Join(home, "out", "people.tsv")
	runCmd(t, "clean", src, "--fill", "mean", "--dedupe", "-o", dst)
	tbl, err := dataset.ReadFile(dst, dataset.ReadOptions{})
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if tbl.NumRows() != 2 {
		t.Fatalf("expected 2 rows after dedupe, got %d", tbl.NumRows())
	}
	if got := tbl.Rows[1][1].Value; got != "1" {
		t.Fatalf("expected mean fill 1, got %q", got)
	}

	// Flags from the previous run must not stick.
	out := runCmd(t, "clean", src, "--dry-run")
	if !strings.Contains(out, "fill:na") || strings.Contains(out, "drop_duplicates") {
		t.Fatalf("unexpected steps in dry run:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, "people_cleaned.csv")); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote output: %v", err)
	}

	for _, args := range [][]string{
		{"clean", filepath.Join(home, "missing.csv")},
		{"clean", src, "--fill", "interpolate"},
		{"clean", src, "--fuzzy", "--fuzzy-threshold", "0"},
		{"clean", src, "--delimiter", `"`},
	} {
		if _, err := execute(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestCLI_Canon(t *testing.T) {
	home := isolate(t)

	out := runCmd(t, "canon", "--values", "Acme Corp,Acme Corp.,Globex", "--fold", "none")
	for _, want := range []string{"Acme Corp.: Acme Corp", "Globex: Globex", "canonicals: 2", "fold: none"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	out = runCmd(t, "canon", "--values", "Acme Corp,Acme Corp.,Globex", "--merged-only")
	if strings.Contains(out, "Globex") || !strings.Contains(out, "Acme Corp.: Acme Corp") {
		t.Fatalf("unexpected merged-only output:\n%s", out)
	}

	src := filepath.Join(home, "firms.csv")
	if err := os.WriteFile(src, []byte("Company\nAcme Corp\nACME CORP\nGlobex\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out = runCmd(t, "canon", src, "--column", "company")
	if !strings.Contains(out, "column: Company") || !strings.Contains(out, "ACME CORP: Acme Corp") {
		t.Fatalf("unexpected column output:\n%s", out)
	}

	for _, args := range [][]string{
		{"canon"},
		{"canon", src},
		{"canon", src, "--column", "nope"},
		{"canon", "--values", "a,b", "--threshold", "2"},
	} {
		if _, err := execute(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestCLI_ProfileBatch(t *testing.T) {
	home := isolate(t)
	d1 := filepath.Join(home, "d1")
	d2 := filepath.Join(home, "d2")
	for _, d := range []string{d1, d2} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(d, "metrics.csv"), []byte("col1,col2\nA,1\nB,2\nC,3\n"), 0o644); err != nil {
			t.Fatalf("write csv: %v", err)
		}
	}

	outDir := filepath.Join(home, "profiles")
	runCmd(t, "profile", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--sample-rows", "0", "--quiet")

	for _, name := range []string{"metrics.profile.md", "metrics__2.profile.md"} {
		body, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if strings.Contains(string(body), "[HEAD AND SAMPLE ROWS]") {
			t.Fatalf("expected no sample rows in %s", name)
		}
	}

	if _, err := execute(t, "profile", filepath.Join(home, "nothing*.csv")); err == nil {
		t.Fatalf("expected error for unmatched glob")
	}
}

func TestCLI_ConfigAndHistory(t *testing.T) {
	home := isolate(t)

	runCmd(t, "config", "set", "fill_method", "Most Frequent")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "fill_method: most_frequent") {
		t.Fatalf("config not saved:\n%s", out)
	}
	if _, err := execute(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected error for unknown key")
	}

	if _, err := execute(t, "history"); err == nil {
		t.Fatalf("expected error with audit off")
	}

	runCmd(t, "config", "set", "audit_db", filepath.Join(home, "state", "audit.db"))
	src := filepath.Join(home, "people.csv")
	if err := os.WriteFile(src, []byte("Name,Email\nann,ann@example.com\nbob,bob-at-example\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out = runCmd(t, "clean", src, "--validate-emails")
	_, after, ok := strings.Cut(out, "✓ Recorded run ")
	if !ok {
		t.Fatalf("run not recorded:\n%s", out)
	}
	runID := strings.TrimSpace(strings.SplitN(after, "\n", 2)[0])

	out = runCmd(t, "history")
	if !strings.Contains(out, runID) || !strings.Contains(out, src) {
		t.Fatalf("history missing run:\n%s", out)
	}
	out = runCmd(t, "history", "--run", runID)
	if !strings.Contains(out, "invalid_email") || !strings.Contains(out, "bob-at-example") {
		t.Fatalf("history missing change:\n%s", out)
	}
	out = runCmd(t, "history", "--json", "--limit", "1")
	var runs []map[string]any
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("bad history json (%v):\n%s", err, out)
	}
	if _, err := execute(t, "history", "--run", "no-such-run"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}
