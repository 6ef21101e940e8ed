package clean

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/dataset"
)

type columnMerge struct {
	mapping canon.Mapping
	changes []Change
}

// fuzzy canonicalizes every text column except email and date columns. Columns are
// independent, so they run concurrently; each goroutine writes only its own
// column and results are merged back in column order.
func (r *run) fuzzy(ctx context.Context) error {
	c, err := canon.New(canon.Options{Threshold: r.opt.FuzzyThreshold, Fold: r.opt.FuzzyFold})
	if err != nil {
		return err
	}
	var cols []int
	for j, name := range r.t.Header {
		if isEmailColumn(name) || isDateColumn(name) || r.t.IsNumeric(j) {
			continue
		}
		cols = append(cols, j)
	}
	limit := r.opt.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	out := make([]columnMerge, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for k, j := range cols {
		k, j := k, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[k] = r.canonicalizeColumn(c, j)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for k, j := range cols {
		name := r.t.Header[j]
		if merged := out[k].mapping.Merged(); len(merged) > 0 {
			r.merges[name] = merged
			r.log.Debug("column canonicalized",
				zap.String("column", name),
				zap.Int("distinct", len(out[k].mapping)),
				zap.Int("merged", len(merged)))
		}
		r.changes = append(r.changes, out[k].changes...)
	}
	return nil
}

func (r *run) canonicalizeColumn(c *canon.Canonicalizer, j int) columnMerge {
	name := r.t.Header[j]
	m := c.Canonicalize(r.t.ColumnValues(j))
	var changes []Change
	for i, row := range r.t.Rows {
		cell := row[j]
		if !cell.Valid {
			continue
		}
		v := m.Apply(cell.Value)
		if v == cell.Value {
			continue
		}
		row[j] = dataset.Text(v)
		changes = append(changes, Change{Row: r.src[i], Column: name, Op: OpFuzzyMerge, Old: cell.Value, New: v})
	}
	return columnMerge{mapping: m, changes: changes}
}
