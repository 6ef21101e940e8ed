package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/clean"
	"github.com/KaramelBytes/rawready/internal/dataset"
)

// Delta compares headline counts before and after a run.
type Delta struct {
	Rows              int `json:"rows"`
	RowsDelta         int `json:"rows_delta"`
	Nulls             int `json:"nulls"`
	NullsFixed        int `json:"nulls_fixed"`
	Duplicates        int `json:"duplicates"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Compare reports the after counts alongside how they moved.
func Compare(before, after dataset.Stats) Delta {
	return Delta{
		Rows:              after.Rows,
		RowsDelta:         after.Rows - before.Rows,
		Nulls:             after.Nulls,
		NullsFixed:        before.Nulls - after.Nulls,
		Duplicates:        after.Duplicates,
		DuplicatesRemoved: before.Duplicates - after.Duplicates,
	}
}

// Summary is the report shown after a cleaning run.
type Summary struct {
	RunID    string                   `json:"run_id"`
	Name     string                   `json:"name,omitempty"`
	Before   dataset.Stats            `json:"before"`
	After    dataset.Stats            `json:"after"`
	Delta    Delta                    `json:"delta"`
	Steps    []string                 `json:"steps"`
	Ops      map[clean.Op]int         `json:"changes_by_op,omitempty"`
	Merges   map[string]canon.Mapping `json:"merges,omitempty"`
	Duration time.Duration            `json:"duration"`
}

// Summarize builds a Summary from a run result.
func Summarize(res *clean.Result) Summary {
	s := Summary{
		RunID:    res.RunID,
		Before:   res.Before,
		After:    res.After,
		Delta:    Compare(res.Before, res.After),
		Steps:    res.Steps,
		Merges:   res.Merges,
		Duration: res.Duration,
	}
	if res.Table != nil {
		s.Name = res.Table.Name
	}
	if len(res.Changes) > 0 {
		s.Ops = map[clean.Op]int{}
		for _, c := range res.Changes {
			s.Ops[c.Op]++
		}
	}
	return s
}

// maxMergesShown caps the merges listed per column in Markdown output.
const maxMergesShown = 10

// Markdown renders the summary in the same sectioned style as Report.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[CLEANING SUMMARY]\n")
	if s.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", s.Name))
	}
	b.WriteString(fmt.Sprintf("Run: %s\n", s.RunID))
	b.WriteString(fmt.Sprintf("Rows: %d (Δ %d)\n", s.Delta.Rows, s.Delta.RowsDelta))
	b.WriteString(fmt.Sprintf("Nulls: %d (fixed %d)\n", s.Delta.Nulls, s.Delta.NullsFixed))
	b.WriteString(fmt.Sprintf("Duplicates: %d (removed %d)\n", s.Delta.Duplicates, s.Delta.DuplicatesRemoved))

	b.WriteString("\n[STEPS]\n")
	if len(s.Steps) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, st := range s.Steps {
		b.WriteString("- " + st + "\n")
	}

	if len(s.Ops) > 0 {
		b.WriteString("\n[CHANGES]\n")
		ops := make([]string, 0, len(s.Ops))
		for op := range s.Ops {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)
		for _, op := range ops {
			b.WriteString(fmt.Sprintf("- %s: %d\n", op, s.Ops[clean.Op(op)]))
		}
	}

	if len(s.Merges) > 0 {
		b.WriteString("\n[MERGES]\n")
		cols := make([]string, 0, len(s.Merges))
		for c := range s.Merges {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, col := range cols {
			m := s.Merges[col]
			b.WriteString(fmt.Sprintf("- %s (%d merged)\n", col, len(m)))
			variants := make([]string, 0, len(m))
			for v := range m {
				variants = append(variants, v)
			}
			sort.Strings(variants)
			for i, v := range variants {
				if i == maxMergesShown {
					b.WriteString(fmt.Sprintf("  • … %d more\n", len(variants)-maxMergesShown))
					break
				}
				b.WriteString(fmt.Sprintf("  • %q → %q\n", v, m[v]))
			}
		}
	}
	return b.String()
}

// RenderSummary is shorthand for Summarize(res).Markdown().
func RenderSummary(res *clean.Result) string { return Summarize(res).Markdown() }
