package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/dataset"
)

var (
	cnColumn     string
	cnValues     []string
	cnThreshold  float64
	cnFold       string
	cnMergedOnly bool
	cnSheetName  string
)

// canonOutput is what `canon` prints, as YAML.
type canonOutput struct {
	Column     string        `yaml:"column,omitempty"`
	Threshold  float64       `yaml:"threshold"`
	Fold       string        `yaml:"fold"`
	Values     int           `yaml:"values"`
	Canonicals int           `yaml:"canonicals"`
	Mapping    canon.Mapping `yaml:"mapping"`
}

var canonCmd = &cobra.Command{
	Use:   "canon [file]",
	Short: "Show how near-duplicate spellings in a column (or a value list) would be merged",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		opt := canon.Options{Threshold: c.FuzzyThreshold, Fold: canon.FoldMode(c.FuzzyFold)}
		if opt.Threshold == 0 {
			opt.Threshold = canon.DefaultThreshold
		}
		if cmd.Flags().Changed("threshold") {
			opt.Threshold = cnThreshold
		}
		if cmd.Flags().Changed("fold") {
			if opt.Fold, err = canon.ParseFoldMode(cnFold); err != nil {
				return err
			}
		}
		cz, err := canon.New(opt)
		if err != nil {
			return err
		}

		res := canonOutput{Threshold: opt.Threshold, Fold: string(opt.Fold)}
		if res.Fold == "" {
			res.Fold = string(canon.FoldNone)
		}
		var values []string
		switch {
		case len(args) == 1:
			if cnColumn == "" {
				return fmt.Errorf("--column is required when a file is given")
			}
			t, err := dataset.ReadFile(args[0], dataset.ReadOptions{Sheet: cnSheetName})
			if err != nil {
				return err
			}
			j := columnByName(t, cnColumn)
			if j < 0 {
				return fmt.Errorf("column %q not found (have: %s)", cnColumn, strings.Join(t.Header, ", "))
			}
			res.Column = t.Header[j]
			values = t.ColumnValues(j)
		case len(cnValues) > 0:
			values = cnValues
		default:
			return fmt.Errorf("give a file with --column, or --values a,b,c")
		}

		m := cz.Canonicalize(values)
		res.Values = len(m)
		res.Canonicals = len(m.Canonicals())
		res.Mapping = m
		if cnMergedOnly {
			res.Mapping = m.Merged()
		}
		b, err := yaml.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

// columnByName prefers an exact header match and falls back to a
// case-insensitive one.
func columnByName(t *dataset.Table, name string) int {
	if j := t.ColumnIndex(name); j >= 0 {
		return j
	}
	for j, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return j
		}
	}
	return -1
}

func init() {
	rootCmd.AddCommand(canonCmd)
	f := canonCmd.Flags()
	f.StringVarP(&cnColumn, "column", "c", "", "column to canonicalize (with a file argument)")
	f.StringSliceVar(&cnValues, "values", nil, "comma-separated values to canonicalize instead of a file column")
	f.Float64Var(&cnThreshold, "threshold", canon.DefaultThreshold, "similarity required to merge, in (0, 1] (default from config)")
	f.StringVar(&cnFold, "fold", "", "fold before scoring: none|lowercase|lowercase_ascii (default from config)")
	f.BoolVar(&cnMergedOnly, "merged-only", false, "print only values that map to a different canonical")
	f.StringVar(&cnSheetName, "sheet-name", "", "XLSX: sheet name to read")
}
