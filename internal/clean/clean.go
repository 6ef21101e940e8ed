// Package clean runs the fixed sequence of cleaning steps over a table.
package clean

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/dataset"
)

// Op names the kind of modification a Change records.
type Op string

const (
	OpFill          Op = "fill"
	OpDropRow       Op = "drop_row"
	OpDropDuplicate Op = "drop_duplicate"
	OpRenameColumn  Op = "rename_column"
	OpNormalizeText Op = "normalize_text"
	OpFixDate       Op = "fix_date"
	OpInvalidEmail  Op = "invalid_email"
	OpFuzzyMerge    Op = "fuzzy_merge"
)

// Change is one recorded modification. Row is the 0-based data row index in
// the input table, or -1 for column-level changes.
type Change struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Op     Op     `json:"op"`
	Old    string `json:"old"`
	New    string `json:"new"`
	Reason string `json:"reason,omitempty"`
}

// Result is the outcome of Run.
type Result struct {
	RunID  string         `json:"run_id"`
	Table  *dataset.Table `json:"-"`
	Before dataset.Stats  `json:"before"`
	After  dataset.Stats  `json:"after"`
	// Merges holds, per column, the values the fuzzy step rewrote and their
	// canonical values. Columns without merges are absent.
	Merges    map[string]canon.Mapping `json:"merges,omitempty"`
	Changes   []Change                 `json:"changes,omitempty"`
	Steps     []string                 `json:"steps"`
	Options   Options                  `json:"options"`
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration"`
}

type run struct {
	t       *dataset.Table
	src     []int
	opt     Options
	log     *zap.Logger
	changes []Change
	merges  map[string]canon.Mapping
}

// Run validates opt and applies the enabled steps to a copy of in. The input
// table is never modified. Cancellation is checked between steps and between
// fuzzy columns.
func Run(ctx context.Context, in *dataset.Table, opt Options, log *zap.Logger) (*Result, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{
		RunID:     uuid.NewString(),
		Before:    in.Stats(),
		Steps:     opt.Steps(),
		Options:   opt,
		StartedAt: time.Now().UTC(),
	}
	log = log.With(zap.String("run_id", res.RunID), zap.String("table", in.Name))

	r := &run{t: in.Clone(), opt: opt, log: log, merges: map[string]canon.Mapping{}}
	r.src = make([]int, in.NumRows())
	for i := range r.src {
		r.src[i] = i
	}

	steps := []struct {
		on   bool
		name string
		fn   func(context.Context) error
	}{
		{opt.FillMethod != FillNone, "fill_missing", r.fillMissing},
		{opt.DropDuplicates, "drop_duplicates", r.dropDuplicates},
		{opt.StandardizeColumns, "standardize_columns", r.standardizeColumns},
		{opt.NormalizeText, "normalize_text", r.normalizeText},
		{opt.FixDates, "fix_dates", r.fixDates},
		{opt.ValidateEmails, "validate_emails", r.validateEmails},
		{opt.Fuzzy, "fuzzy", r.fuzzy},
	}
	for _, s := range steps {
		if !s.on {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := len(r.changes)
		if err := s.fn(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		log.Debug("step finished", zap.String("step", s.name), zap.Int("changes", len(r.changes)-n))
	}

	res.Table = r.t
	res.After = r.t.Stats()
	res.Changes = r.changes
	if len(r.merges) > 0 {
		res.Merges = r.merges
	}
	res.Duration = time.Since(res.StartedAt)
	log.Info("cleaning finished",
		zap.Int("rows_before", res.Before.Rows),
		zap.Int("rows_after", res.After.Rows),
		zap.Int("nulls_fixed", res.Before.Nulls-res.After.Nulls),
		zap.Int("changes", len(res.Changes)),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (r *run) record(c Change) { r.changes = append(r.changes, c) }

func (r *run) fillMissing(context.Context) error {
	t := r.t
	if r.opt.FillMethod == FillDropRows {
		kept, keptSrc := t.Rows[:0], r.src[:0]
		for i, row := range t.Rows {
			if col := firstNull(t.Header, row); col != "" {
				r.record(Change{Row: r.src[i], Column: col, Op: OpDropRow, Reason: "row has missing values"})
				continue
			}
			kept = append(kept, row)
			keptSrc = append(keptSrc, r.src[i])
		}
		t.Rows, r.src = kept, keptSrc
		return nil
	}
	for j, name := range t.Header {
		if t.ColumnNulls(j) == 0 {
			continue
		}
		v, ok := r.fillValue(j)
		if !ok {
			r.log.Debug("column left unfilled", zap.String("column", name), zap.String("method", string(r.opt.FillMethod)))
			continue
		}
		for i, row := range t.Rows {
			if row[j].Valid {
				continue
			}
			row[j] = dataset.Text(v)
			r.record(Change{Row: r.src[i], Column: name, Op: OpFill, New: v, Reason: "missing value (" + string(r.opt.FillMethod) + ")"})
		}
	}
	return nil
}

func firstNull(header []string, row dataset.Row) string {
	for j, c := range row {
		if !c.Valid {
			return header[j]
		}
	}
	return ""
}

// fillValue computes the replacement for missing cells of column j. Mean and
// median only apply to numeric columns; the mode needs at least one value.
func (r *run) fillValue(j int) (string, bool) {
	t := r.t
	switch r.opt.FillMethod {
	case FillNA:
		return FillValue, true
	case FillMean, FillMedian:
		if !t.IsNumeric(j) {
			return "", false
		}
		xs := numbers(t.ColumnValues(j))
		if r.opt.FillMethod == FillMean {
			return dataset.FormatNumber(mean(xs)), true
		}
		return dataset.FormatNumber(median(xs)), true
	case FillMostFrequent:
		return mode(t.ColumnValues(j), t.IsNumeric(j))
	}
	return "", false
}

func numbers(vals []string) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if x, ok := dataset.ParseNumber(v); ok {
			out = append(out, x)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mode returns the most frequent value. Ties go to the smallest value, in
// numeric order for numeric columns. Numeric values are grouped by their
// parsed value and the first spelling seen is returned.
func mode(vals []string, numeric bool) (string, bool) {
	if len(vals) == 0 {
		return "", false
	}
	type entry struct {
		spelling string
		num      float64
		count    int
	}
	byKey := map[string]*entry{}
	for _, v := range vals {
		key, num := v, 0.0
		if numeric {
			num, _ = dataset.ParseNumber(v)
			key = dataset.FormatNumber(num)
		}
		e := byKey[key]
		if e == nil {
			e = &entry{spelling: v, num: num}
			byKey[key] = e
		}
		e.count++
	}
	var best *entry
	for _, e := range byKey {
		switch {
		case best == nil, e.count > best.count:
			best = e
		case e.count == best.count:
			if numeric && e.num < best.num {
				best = e
			} else if !numeric && e.spelling < best.spelling {
				best = e
			}
		}
	}
	return best.spelling, true
}

func (r *run) dropDuplicates(context.Context) error {
	t := r.t
	seen := make(map[string]int, len(t.Rows))
	kept, keptSrc := t.Rows[:0], r.src[:0]
	for i, row := range t.Rows {
		k := dataset.RowKey(row)
		if first, dup := seen[k]; dup {
			r.record(Change{Row: r.src[i], Op: OpDropDuplicate, Reason: fmt.Sprintf("duplicate of row %d", first)})
			continue
		}
		seen[k] = r.src[i]
		kept = append(kept, row)
		keptSrc = append(keptSrc, r.src[i])
	}
	t.Rows, r.src = kept, keptSrc
	return nil
}

func (r *run) standardizeColumns(context.Context) error {
	for j, h := range r.t.Header {
		n := StandardizeName(h)
		if n == h {
			continue
		}
		r.t.Header[j] = n
		r.record(Change{Row: -1, Column: n, Op: OpRenameColumn, Old: h, New: n})
	}
	return nil
}

func (r *run) normalizeText(context.Context) error {
	for j, name := range r.t.Header {
		if isEmailColumn(name) || r.t.IsNumeric(j) {
			continue
		}
		r.rewrite(j, OpNormalizeText, "", func(v string) (string, bool) {
			return TitleCase(v), true
		})
	}
	return nil
}

func (r *run) fixDates(context.Context) error {
	for j, name := range r.t.Header {
		if !isDateColumn(name) {
			continue
		}
		r.rewrite(j, OpFixDate, "date rewritten as YYYY-MM-DD", ParseDate)
	}
	return nil
}

func (r *run) validateEmails(context.Context) error {
	for j, name := range r.t.Header {
		if !isEmailColumn(name) {
			continue
		}
		for i, row := range r.t.Rows {
			c := row[j]
			if c.Valid && ValidEmail(c.Value) {
				continue
			}
			reason := "malformed address"
			if !c.Valid {
				reason = "missing address"
			}
			row[j] = dataset.Text(InvalidEmail)
			r.record(Change{Row: r.src[i], Column: name, Op: OpInvalidEmail, Old: c.Value, New: InvalidEmail, Reason: reason})
		}
	}
	return nil
}

// rewrite applies fn to every non-null cell of column j and records the
// cells it changed.
func (r *run) rewrite(j int, op Op, reason string, fn func(string) (string, bool)) {
	name := r.t.Header[j]
	for i, row := range r.t.Rows {
		c := row[j]
		if !c.Valid {
			continue
		}
		n, ok := fn(c.Value)
		if !ok || n == c.Value {
			continue
		}
		row[j] = dataset.Text(n)
		r.record(Change{Row: r.src[i], Column: name, Op: op, Old: c.Value, New: n, Reason: reason})
	}
}
