package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/clean"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.FillMethod != "na" || c.FuzzyThreshold != 0.85 || c.FuzzyFold != "lowercase" {
		t.Fatalf("cleaning defaults = %+v", c)
	}
	if c.ListenAddr != ":8080" || c.MaxUploadMB != 32 || c.LogLevel != "info" || c.AuditDB != "" {
		t.Fatalf("server defaults = %+v", c)
	}
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "rawready.yaml")
	body := "fill_method: median\nfuzzy_threshold: 0.9\nlisten_addr: 127.0.0.1:9000\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAWREADY_FUZZY_THRESHOLD", "0.7")
	// .env in the working directory is picked up but never beats the process env.
	if err := os.WriteFile(".env", []byte("RAWREADY_LOG_LEVEL=debug\nRAWREADY_FUZZY_THRESHOLD=0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("RAWREADY_LOG_LEVEL") })

	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.FillMethod != "median" || c.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.FuzzyThreshold != 0.7 {
		t.Fatalf("env should override file, got %v", c.FuzzyThreshold)
	}
	if c.LogLevel != "debug" {
		t.Fatalf(".env value not applied, got %q", c.LogLevel)
	}
}

func TestLoadBrokenConfigFails(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("fill_method: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSetSaveReload(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for k, v := range map[string]string{
		"fill_method":     "Most Frequent",
		"fuzzy_threshold": "0.92",
		"fuzzy_fold":      "lowercase_ascii",
		"delimiter":       "tab",
		"audit_db":        "~/.rawready/audit.db",
		"log_format":      "JSON",
	} {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	if err := Save(c, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".rawready", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	back, err := Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.FillMethod != "most_frequent" || back.FuzzyThreshold != 0.92 || back.FuzzyFold != "lowercase_ascii" || back.LogFormat != "json" {
		t.Fatalf("reloaded = %+v", back)
	}
	if got, _ := back.Get("delimiter"); got != `"tab"` {
		t.Fatalf("delimiter = %s", got)
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	bad := map[string]string{
		"fill_method":        "interpolate",
		"fuzzy_threshold":    "1.5",
		"fuzzy_fold":         "soundex",
		"parallel":           "-1",
		"delimiter":          "ab",
		"rate_limit_per_sec": "fast",
		"log_level":          "trace",
		"log_format":         "xml",
		"nope":               "x",
	}
	for k, v := range bad {
		if err := c.Set(k, v); err == nil {
			t.Errorf("Set(%s, %s) should fail", k, v)
		}
	}
	if _, err := c.Get("nope"); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Errorf("Get unknown key err = %v", err)
	}
	for _, k := range Keys {
		if _, err := c.Get(k); err != nil {
			t.Errorf("Get(%s): %v", k, err)
		}
	}
}

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{"": ',', "tab": '\t', `\t`: '\t', ";": ';', "pipe": '|', "#": '#'}
	for in, want := range cases {
		got, err := ParseDelimiter(in)
		if err != nil || got != want {
			t.Errorf("ParseDelimiter(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDelimiter(`"`); err == nil {
		t.Errorf("quote must be rejected")
	}
}

func TestCleanOptions(t *testing.T) {
	c := &Global{FillMethod: "drop_rows", FuzzyThreshold: 0.9, FuzzyFold: "none", Parallel: 3}
	opt, err := c.CleanOptions()
	if err != nil {
		t.Fatalf("CleanOptions: %v", err)
	}
	if opt.FillMethod != clean.FillDropRows || opt.FuzzyThreshold != 0.9 || opt.FuzzyFold != canon.FoldNone || opt.Parallel != 3 {
		t.Fatalf("opt = %+v", opt)
	}
	if opt.Fuzzy || opt.DropDuplicates {
		t.Fatalf("step toggles should stay off")
	}
	opt, err = (&Global{}).CleanOptions()
	if err != nil || opt.FuzzyFold != canon.FoldLowercase || opt.FuzzyThreshold != canon.DefaultThreshold {
		t.Fatalf("zero config = %+v, %v", opt, err)
	}
}
