package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/rawready/internal/config"
	"github.com/KaramelBytes/rawready/internal/dataset"
	"github.com/KaramelBytes/rawready/internal/sample"
)

var (
	smRows   int
	smSeed   int64
	smOutput string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a messy customer dataset to try the cleaner on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		n := c.SampleRows
		if cmd.Flags().Changed("rows") {
			n = smRows
		}
		if n < 0 {
			return fmt.Errorf("--rows must be >= 0, got %d", n)
		}
		delim, err := cfgpkg.ParseDelimiter(c.Delimiter)
		if err != nil {
			return err
		}
		t := sample.Generate(n, smSeed)
		if err := dataset.WriteFile(smOutput, t, delim); err != nil {
			return err
		}
		st := t.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s (%d null cells, %d duplicate rows)\n", st.Rows, smOutput, st.Nulls, st.Duplicates)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().IntVarP(&smRows, "rows", "n", 200, "number of rows (default from config sample_rows)")
	sampleCmd.Flags().Int64Var(&smSeed, "seed", 0, "random seed; 0 picks a random one")
	sampleCmd.Flags().StringVarP(&smOutput, "output", "o", "messy_data.csv", "output path (.csv, .tsv or .xlsx)")
}
