// Package analysis profiles tables and summarizes cleaning runs.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/rawready/internal/clean"
	"github.com/KaramelBytes/rawready/internal/dataset"
)

// Options controls profiling.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int `json:"max_rows"`
	// SampleRows determines how many example rows to include in the report.
	SampleRows int `json:"sample_rows"`
	// GroupBy computes per-group numeric summaries for the given column names.
	GroupBy []string `json:"group_by,omitempty"`
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool    `json:"outliers"`
	OutlierThreshold float64 `json:"outlier_threshold"`
	// TopValues caps the categorical values listed per column.
	TopValues int `json:"top_values"`
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		MaxRows:          100000,
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name      string          `json:"name"`
	Rows      int             `json:"rows"`
	Processed int             `json:"processed"`
	Stats     dataset.Stats   `json:"stats"`
	Cols      []ColumnSummary `json:"columns"`
	Samples   [][]string      `json:"samples,omitempty"`
	Groups    []GroupResult   `json:"groups,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // numeric|datetime|categorical|text|unknown
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Categorical top values
	TopValues    []CategoryCount `json:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string                `json:"key"`
	Size    int                   `json:"size"`
	Metrics map[string]NumSummary `json:"metrics"`
}

type NumSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// categorical columns list at most this many distinct values before they are
// treated as free text.
const maxCategories = 50

type colAcc struct {
	nonNil int
	miss   int
	// numeric stats via Welford
	n      int
	mean   float64
	m2     float64
	min    float64
	max    float64
	vals   []float64
	numCnt int
	dtCnt  int
	txtCnt int
	cats   map[string]int
	exText []string
}

func (c *colAcc) addNumber(x float64) {
	c.numCnt++
	c.n++
	c.min = math.Min(c.min, x)
	c.max = math.Max(c.max, x)
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)
	c.vals = append(c.vals, x)
}

type groupAcc struct {
	size int
	sum  map[int]float64
	min  map[int]float64
	max  map[int]float64
	cnt  map[int]int
}

// Profile computes per-column statistics for t.
func Profile(t *dataset.Table, opt Options) *Report {
	rep := &Report{Name: t.Name, Rows: t.NumRows(), Stats: t.Stats()}
	ncol := t.NumCols()
	if ncol == 0 {
		return rep
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}

	cols := make([]*colAcc, ncol)
	for j := range cols {
		cols[j] = &colAcc{min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}}
	}
	var groupIdx []int
	for _, name := range opt.GroupBy {
		if j := indexFold(t.Header, name); j >= 0 {
			groupIdx = append(groupIdx, j)
		} else {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("group-by column %q not found", name))
		}
	}
	groups := map[string]*groupAcc{}

	for _, row := range t.Rows {
		if rep.Processed >= maxRows {
			break
		}
		rep.Processed++
		if len(rep.Samples) < sampleRows {
			cp := make([]string, ncol)
			for j, c := range row {
				cp[j] = c.Value
			}
			rep.Samples = append(rep.Samples, cp)
		}
		var ga *groupAcc
		if len(groupIdx) > 0 {
			key := groupKey(t.Header, row, groupIdx)
			ga = groups[key]
			if ga == nil {
				ga = &groupAcc{sum: map[int]float64{}, min: map[int]float64{}, max: map[int]float64{}, cnt: map[int]int{}}
				groups[key] = ga
			}
			ga.size++
		}
		for j, cell := range row {
			c := cols[j]
			v := strings.TrimSpace(cell.Value)
			if !cell.Valid || v == "" {
				c.miss++
				continue
			}
			c.nonNil++
			if x, ok := dataset.ParseNumber(v); ok {
				c.addNumber(x)
				if ga != nil {
					ga.add(j, x)
				}
				continue
			}
			if _, ok := parseTimeMaybe(v); ok {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.cats) <= 10000 && len(v) <= 64 {
				c.cats[v]++
			}
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	var numCols []int
	for j, c := range cols {
		s := ColumnSummary{Name: t.Header[j], NonNull: c.nonNil, Missing: c.miss}
		switch {
		case c.numCnt > 0 && c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt:
			s.Kind = "numeric"
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			numCols = append(numCols, j)
			if opt.Outliers && len(c.vals) >= 8 {
				s.OutlierThreshold = opt.OutlierThreshold
				if s.OutlierThreshold <= 0 {
					s.OutlierThreshold = 3.5
				}
				s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(c.vals, s.OutlierThreshold)
			}
		case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
			s.Kind = "datetime"
		case len(c.cats) > 0 && len(c.cats) <= maxCategories:
			s.Kind = "categorical"
			s.Unique = len(c.cats)
			s.TopValues = topValues(c.cats, opt.TopValues)
		case c.txtCnt > 0:
			s.Kind = "text"
			s.Unique = len(c.cats)
			s.ExampleTexts = c.exText
		default:
			s.Kind = "unknown"
		}
		rep.Cols = append(rep.Cols, s)
	}

	if len(groups) > 0 {
		rep.Groups = groupResults(groups, numCols, t.Header)
	}
	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	return rep
}

func (ga *groupAcc) add(j int, x float64) {
	ga.sum[j] += x
	ga.cnt[j]++
	if m, ok := ga.min[j]; !ok || x < m {
		ga.min[j] = x
	}
	if m, ok := ga.max[j]; !ok || x > m {
		ga.max[j] = x
	}
}

func groupKey(header []string, row dataset.Row, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		v := row[j].Value
		if !row[j].Valid {
			v = "(null)"
		}
		parts[i] = fmt.Sprintf("%s=%s", header[j], safeVal(strings.TrimSpace(v)))
	}
	return strings.Join(parts, " | ")
}

func groupResults(groups map[string]*groupAcc, numCols []int, header []string) []GroupResult {
	outs := make([]GroupResult, 0, len(groups))
	for k, ga := range groups {
		gr := GroupResult{Key: k, Size: ga.size, Metrics: map[string]NumSummary{}}
		for _, j := range numCols {
			if ga.cnt[j] == 0 {
				continue
			}
			gr.Metrics[header[j]] = NumSummary{Count: ga.cnt[j], Min: ga.min[j], Max: ga.max[j], Mean: ga.sum[j] / float64(ga.cnt[j])}
		}
		outs = append(outs, gr)
	}
	sort.Slice(outs, func(i, j int) bool {
		if outs[i].Size == outs[j].Size {
			return outs[i].Key < outs[j].Key
		}
		return outs[i].Size > outs[j].Size
	})
	if len(outs) > 20 {
		outs = outs[:20]
	}
	return outs
}

func topValues(cats map[string]int, n int) []CategoryCount {
	if n <= 0 {
		n = 8
	}
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

func indexFold(header []string, name string) int {
	name = strings.TrimSpace(name)
	for j, h := range header {
		if strings.EqualFold(h, name) {
			return j
		}
	}
	return -1
}

// robustOutliers counts values whose modified Z-score exceeds thr.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		maxAbsZ = math.Max(maxAbsZ, az)
	}
	return count, maxAbsZ
}

var timeLayouts = append([]string{
	time.RFC3339, "2006-01-02 15:04", "2006-01-02 15:04:05", "2006/01/02",
	"1/2/2006 15:04", "1/2/2006 15:04:05",
}, clean.DateLayouts...)

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
