package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rawready/internal/audit"
	"github.com/KaramelBytes/rawready/internal/utils"
)

var (
	hsRunID string
	hsLimit int
	hsJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded cleaning runs, or the changes made by one run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		if c.AuditDB == "" {
			return fmt.Errorf("audit history is off; enable it with: rawready config set audit_db ~/.rawready/audit.db")
		}
		store, err := openAudit(c, zap.NewNop())
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if hsRunID != "" {
			run, err := store.Run(ctx, hsRunID)
			if err != nil {
				return err
			}
			changes, err := store.Changes(ctx, hsRunID)
			if err != nil {
				return err
			}
			if hsJSON {
				return writeJSON(out, struct {
					Run     audit.RunRecord      `json:"run"`
					Changes []audit.ChangeRecord `json:"changes"`
				}{run, changes})
			}
			printRun(out, run)
			if len(changes) == 0 {
				fmt.Fprintln(out, "(no changes)")
			}
			for _, ch := range changes {
				printChange(out, ch)
			}
			return nil
		}

		runs, err := store.ListRuns(ctx, hsLimit)
		if err != nil {
			return err
		}
		if hsJSON {
			return writeJSON(out, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		for _, r := range runs {
			printRun(out, r)
		}
		return nil
	},
}

func printRun(w io.Writer, r audit.RunRecord) {
	fmt.Fprintf(w, "- %s  %s  %s  rows %d→%d, nulls %d→%d, duplicates %d→%d, %d changes (%s)\n",
		r.ID, r.Started().Local().Format(time.DateTime), r.Source,
		r.RowsBefore, r.RowsAfter, r.NullsBefore, r.NullsAfter, r.DuplicatesBefore, r.DuplicatesAfter,
		r.Changes, time.Duration(r.DurationMS)*time.Millisecond)
}

func printChange(w io.Writer, ch audit.ChangeRecord) {
	loc := "header"
	if ch.Row >= 0 {
		loc = fmt.Sprintf("row %d", ch.Row)
	}
	if ch.Column != "" {
		loc += " [" + ch.Column + "]"
	}
	fmt.Fprintf(w, "  %s %s: %q → %q", loc, ch.Op, ch.Old, ch.New)
	if ch.Reason != "" {
		fmt.Fprintf(w, " (%s)", ch.Reason)
	}
	fmt.Fprintln(w)
}

func writeJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&hsRunID, "run", "", "show the changes recorded for this run id")
	historyCmd.Flags().IntVar(&hsLimit, "limit", 20, "maximum runs to list (0 = all)")
	historyCmd.Flags().BoolVar(&hsJSON, "json", false, "print JSON instead of text")
}
