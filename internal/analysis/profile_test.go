package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/rawready/internal/dataset"
)

var metricsRows = [][]string{
	{"A", "10", "alpha", "2024-01-05"},
	{"A", "11", "alpha", "2024-01-06"},
	{"A", "9.5", "beta", "2024-01-07"},
	{"B", "10.5", "alpha", "2024-01-08"},
	{"B", "9.8", "", "2024-01-09"},
	{"B", "10.2", "alpha", "Jan 10, 2024"},
	{"A", "8.8", "gamma", "2024-01-11"},
	{"B", "9.7", "beta", "2024-01-12"},
	{"A", "50", "alpha", "2024-01-13"},
	{"B", "10.1", "gamma", "2024-01-14"},
}

func metricsTable() *dataset.Table {
	t := &dataset.Table{Name: "metrics.csv", Header: []string{"Group", "Score", "Category", "Seen"}}
	for _, r := range metricsRows {
		row := make(dataset.Row, len(r))
		for j, v := range r {
			if v != "" {
				row[j] = dataset.Text(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func TestProfileAndMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.SampleRows = 3
	opt.MaxRows = 9
	opt.GroupBy = []string{"group"}

	rep := Profile(metricsTable(), opt)
	if rep.Rows != 10 || rep.Processed != 9 {
		t.Fatalf("rows=%d processed=%d", rep.Rows, rep.Processed)
	}
	if len(rep.Samples) != 3 {
		t.Fatalf("samples=%d", len(rep.Samples))
	}
	kinds := map[string]string{}
	for _, c := range rep.Cols {
		kinds[c.Name] = c.Kind
	}
	want := map[string]string{"Group": "categorical", "Score": "numeric", "Category": "categorical", "Seen": "datetime"}
	for k, v := range want {
		if kinds[k] != v {
			t.Errorf("kind[%s] = %s, want %s", k, kinds[k], v)
		}
	}

	score := rep.Cols[1]
	if score.Min != 8.8 || score.Max != 50 {
		t.Fatalf("score min/max = %v/%v", score.Min, score.Max)
	}
	wantMean := (10 + 11 + 9.5 + 10.5 + 9.8 + 10.2 + 8.8 + 9.7 + 50) / 9
	if math.Abs(score.Mean-wantMean) > 1e-9 {
		t.Fatalf("score mean = %v, want %v", score.Mean, wantMean)
	}
	if score.OutliersCount != 1 || score.OutlierThreshold != 3.5 {
		t.Fatalf("outliers = %d (thr %v)", score.OutliersCount, score.OutlierThreshold)
	}

	cat := rep.Cols[2]
	if cat.Missing != 1 || cat.NonNull != 8 {
		t.Fatalf("category missing=%d non-null=%d", cat.Missing, cat.NonNull)
	}
	if len(cat.TopValues) == 0 || cat.TopValues[0] != (CategoryCount{Value: "alpha", Count: 5}) {
		t.Fatalf("top values = %+v", cat.TopValues)
	}

	if len(rep.Groups) != 2 {
		t.Fatalf("groups = %+v", rep.Groups)
	}
	if rep.Groups[0].Key != "Group=A" || rep.Groups[0].Size != 5 {
		t.Fatalf("first group = %+v", rep.Groups[0])
	}
	if m := rep.Groups[0].Metrics["Score"]; m.Count != 5 || m.Max != 50 {
		t.Fatalf("group A score = %+v", m)
	}

	md := rep.Markdown()
	for _, frag := range []string{
		"[DATASET SUMMARY]",
		"File: metrics.csv",
		"Rows: ~10 (processed 9)",
		"Null cells: 1",
		"- Score: numeric",
		"outliers: 1 above |z|>3.5",
		"- Category: categorical",
		"alpha(5)",
		"[GROUP-BY SUMMARY]",
		"- Group=A (n=5)",
		"[HEAD AND SAMPLE ROWS]",
		"| Group | Score | Category | Seen |",
		"processed only 9/10 rows due to MaxRows",
	} {
		if !strings.Contains(md, frag) {
			t.Errorf("markdown missing %q:\n%s", frag, md)
		}
	}
}

func TestProfileTextAndUnknownColumns(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 8)
	tb := &dataset.Table{
		Header: []string{"note", "empty"},
		Rows: []dataset.Row{
			{dataset.Text(long + "1"), dataset.Null()},
			{dataset.Text(long + "2|x\ny"), dataset.Text("  ")},
		},
	}
	rep := Profile(tb, DefaultOptions())
	if rep.Cols[0].Kind != "text" || len(rep.Cols[0].ExampleTexts) != 2 {
		t.Fatalf("note = %+v", rep.Cols[0])
	}
	if rep.Cols[1].Kind != "unknown" || rep.Cols[1].Missing != 2 {
		t.Fatalf("empty = %+v", rep.Cols[1])
	}
	md := rep.Markdown()
	if strings.Contains(md, "|x\ny") {
		t.Fatalf("markdown should escape pipes and newlines:\n%s", md)
	}
}

func TestProfileEmptyTableAndMissingGroup(t *testing.T) {
	rep := Profile(&dataset.Table{}, DefaultOptions())
	if rep.Rows != 0 || len(rep.Cols) != 0 {
		t.Fatalf("empty report = %+v", rep)
	}
	opt := DefaultOptions()
	opt.GroupBy = []string{"nope"}
	rep = Profile(metricsTable(), opt)
	if len(rep.Groups) != 0 || len(rep.Warnings) != 1 {
		t.Fatalf("groups=%v warnings=%v", rep.Groups, rep.Warnings)
	}
}

func TestMedianMAD(t *testing.T) {
	med, mad := medianMAD([]float64{1, 2, 3, 4, 100})
	if med != 3 || mad != 1 {
		t.Fatalf("median=%v mad=%v", med, mad)
	}
	if n, z := robustOutliers([]float64{5, 5, 5, 5}, 3.5); n != 0 || z != 0 {
		t.Fatalf("zero MAD should report no outliers, got %d %v", n, z)
	}
}
