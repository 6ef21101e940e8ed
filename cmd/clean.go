package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rawready/internal/analysis"
	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/clean"
	cfgpkg "github.com/KaramelBytes/rawready/internal/config"
	"github.com/KaramelBytes/rawready/internal/dataset"
	"github.com/KaramelBytes/rawready/internal/utils"
)

var (
	clOutput         string
	clFill           string
	clDedupe         bool
	clStandardize    bool
	clNormalize      bool
	clFixDates       bool
	clValidateEmails bool
	clFuzzy          bool
	clFuzzyThreshold float64
	clFuzzyFold      string
	clParallel       int
	clAll            bool
	clReport         string
	clChanges        string
	clDelimiter      string
	clSheetName      string
	clSheetIndex     int
	clDryRun         bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Clean a CSV/TSV/XLSX file and write the result next to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		c, err := settings()
		if err != nil {
			return err
		}
		opt, err := cleanOptionsFromFlags(cmd, c)
		if err != nil {
			return err
		}
		delim, err := cfgpkg.ParseDelimiter(c.Delimiter)
		if cmd.Flags().Changed("delimiter") {
			delim, err = cfgpkg.ParseDelimiter(clDelimiter)
		}
		if err != nil {
			return err
		}

		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ropt := dataset.ReadOptions{Sheet: clSheetName, SheetIndex: clSheetIndex}
		if f, _ := dataset.FormatOf(path); f == dataset.FormatCSV {
			ropt.Delimiter = delim
		}
		t, err := dataset.ReadFile(path, ropt)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		res, err := clean.Run(ctx, t, opt, log.With(zap.String("file", t.Name)))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		summary := analysis.RenderSummary(res)
		if clDryRun {
			fmt.Fprintln(out, summary)
			return nil
		}

		dst := clOutput
		if dst == "" {
			dst = utils.CleanedPath(path, "")
		}
		if err := dataset.WriteFile(dst, res.Table, delim); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote cleaned data to %s\n", dst)
		fmt.Fprintln(out, summary)

		if clReport != "" {
			if err := utils.SafeWriteFile(clReport, []byte(summary)); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote summary to %s\n", clReport)
		}
		if clChanges != "" {
			b, err := utils.PrettyJSON(res.Changes)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(clChanges, b); err != nil {
				return fmt.Errorf("write changes: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %d changes to %s\n", len(res.Changes), clChanges)
		}

		store, err := openAudit(c, log)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: audit disabled: %v\n", err)
			return nil
		}
		if store != nil {
			defer store.Close()
			abs, _ := filepath.Abs(path)
			if err := store.RecordResult(ctx, abs, res); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: failed to record run: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "✓ Recorded run %s\n", res.RunID)
		}
		return nil
	},
}

// cleanOptionsFromFlags starts from the configured defaults and applies the
// flags the user set.
func cleanOptionsFromFlags(cmd *cobra.Command, c *cfgpkg.Global) (clean.Options, error) {
	opt, err := c.CleanOptions()
	if err != nil {
		return opt, err
	}
	f := cmd.Flags()
	if f.Changed("fill") {
		m, err := clean.ParseFillMethod(clFill)
		if err != nil {
			return opt, err
		}
		opt.FillMethod = m
	}
	if f.Changed("fuzzy-threshold") {
		opt.FuzzyThreshold = clFuzzyThreshold
	}
	if f.Changed("fuzzy-fold") {
		m, err := canon.ParseFoldMode(clFuzzyFold)
		if err != nil {
			return opt, err
		}
		opt.FuzzyFold = m
	}
	if f.Changed("parallel") {
		opt.Parallel = clParallel
	}
	opt.DropDuplicates = clDedupe || clAll
	opt.StandardizeColumns = clStandardize || clAll
	opt.NormalizeText = clNormalize || clAll
	opt.FixDates = clFixDates || clAll
	opt.ValidateEmails = clValidateEmails || clAll
	opt.Fuzzy = clFuzzy || clAll
	return opt, opt.Validate()
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	f := cleanCmd.Flags()
	f.StringVarP(&clOutput, "output", "o", "", "output path (default <name>_cleaned.<ext> next to the input)")
	f.StringVar(&clFill, "fill", "", "fill missing values: none|na|mean|median|most_frequent|drop_rows (default from config)")
	f.BoolVar(&clDedupe, "dedupe", false, "drop exact duplicate rows")
	f.BoolVar(&clStandardize, "standardize-columns", false, "lowercase column names and replace spaces with underscores")
	f.BoolVar(&clNormalize, "normalize-text", false, "trim and title-case text cells (email columns excluded)")
	f.BoolVar(&clFixDates, "fix-dates", false, "rewrite parseable dates in date columns as YYYY-MM-DD")
	f.BoolVar(&clValidateEmails, "validate-emails", false, "replace malformed emails with "+clean.InvalidEmail)
	f.BoolVar(&clFuzzy, "fuzzy", false, "merge near-duplicate spellings in text columns")
	f.Float64Var(&clFuzzyThreshold, "fuzzy-threshold", canon.DefaultThreshold, "similarity required to merge, in (0, 1]")
	f.StringVar(&clFuzzyFold, "fuzzy-fold", "", "fold before scoring: none|lowercase|lowercase_ascii (default from config)")
	f.IntVar(&clParallel, "parallel", 0, "columns canonicalized at once (0 = GOMAXPROCS)")
	f.BoolVar(&clAll, "all", false, "enable every cleaning step")
	f.StringVar(&clReport, "report", "", "also write the Markdown summary to this path")
	f.StringVar(&clChanges, "changes", "", "write the per-cell change log as JSON to this path")
	f.StringVar(&clDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe' (default from config)")
	f.StringVar(&clSheetName, "sheet-name", "", "XLSX: sheet name to clean")
	f.IntVar(&clSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.BoolVar(&clDryRun, "dry-run", false, "print the summary without writing any files")
}
