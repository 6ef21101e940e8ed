package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rawready/internal/analysis"
	cfgpkg "github.com/KaramelBytes/rawready/internal/config"
	"github.com/KaramelBytes/rawready/internal/dataset"
	"github.com/KaramelBytes/rawready/internal/utils"
)

var (
	prOutputPath string
	prOutDir     string
	prDelimiter  string
	prSampleRows int
	prMaxRows    int
	prGroupBy    []string
	prOutliers   bool
	prOutlierThr float64
	prTopValues  int
	prSheetName  string
	prSheetIndex int
	prQuiet      bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Profile CSV/TSV/XLSX files and print a Markdown summary",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if prOutputPath != "" && len(files) > 1 {
			return fmt.Errorf("--output takes a single input; use --out-dir for %d files", len(files))
		}

		opt := analysis.DefaultOptions()
		if prSampleRows >= 0 {
			opt.SampleRows = prSampleRows
		}
		if prMaxRows >= 0 {
			opt.MaxRows = prMaxRows
		}
		if prTopValues > 0 {
			opt.TopValues = prTopValues
		}
		opt.GroupBy = prGroupBy
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = prOutliers
		}
		if prOutlierThr > 0 {
			opt.OutlierThreshold = prOutlierThr
		}
		var delim rune
		if prDelimiter != "" {
			if delim, err = cfgpkg.ParseDelimiter(prDelimiter); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if total > 1 && !prQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			t, err := dataset.ReadFile(path, dataset.ReadOptions{Delimiter: delim, Sheet: prSheetName, SheetIndex: prSheetIndex})
			if err != nil {
				return err
			}
			md := analysis.Profile(t, opt).Markdown()

			switch {
			case prOutputPath != "":
				if err := utils.SafeWriteFile(prOutputPath, []byte(md)); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Fprintf(out, "✓ Wrote profile to %s\n", prOutputPath)
			case prOutDir != "":
				dst, err := profilePath(prOutDir, path, prSheetName)
				if err != nil {
					return err
				}
				if err := utils.SafeWriteFile(dst, []byte(md)); err != nil {
					return fmt.Errorf("write profile: %w", err)
				}
				if !prQuiet {
					fmt.Fprintf(out, "✓ Wrote profile to %s\n", dst)
				}
			default:
				fmt.Fprintln(out, md)
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, and returns the
// sorted, de-duplicated file list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// profilePath names the Markdown file for src inside dir. Inputs sharing a
// base name get "__2", "__3", ... so earlier profiles are never overwritten.
func profilePath(dir, src, sheet string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if sheet != "" {
		stem += "__sheet-" + sheetSlug(sheet)
	}
	dst := filepath.Join(dir, stem+".profile.md")
	for idx := 2; ; idx++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			return dst, nil
		}
		dst = filepath.Join(dir, fmt.Sprintf("%s__%d.profile.md", stem, idx))
	}
}

func sheetSlug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	if ss := strings.Trim(b.String(), "-"); ss != "" {
		return ss
	}
	return "sheet"
}

func init() {
	rootCmd.AddCommand(profileCmd)
	f := profileCmd.Flags()
	f.StringVarP(&prOutputPath, "output", "o", "", "write the profile (Markdown) to this path")
	f.StringVar(&prOutDir, "out-dir", "", "write one <name>.profile.md per input into this directory")
	f.StringVar(&prDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	f.IntVar(&prSampleRows, "sample-rows", 5, "number of sample rows to include (0 disables samples)")
	f.IntVar(&prMaxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	f.StringSliceVar(&prGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	f.BoolVar(&prOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	f.Float64Var(&prOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	f.IntVar(&prTopValues, "top-values", 8, "categorical values listed per column")
	f.StringVar(&prSheetName, "sheet-name", "", "XLSX: sheet name to profile")
	f.IntVar(&prSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.BoolVar(&prQuiet, "quiet", false, "suppress progress and non-essential output")
}
