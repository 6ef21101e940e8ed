package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rawready/internal/audit"
	cfgpkg "github.com/KaramelBytes/rawready/internal/config"
	"github.com/KaramelBytes/rawready/internal/logging"
	"github.com/KaramelBytes/rawready/internal/utils"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "rawready",
	Short: "rawready: clean messy CSV/XLSX data",
	Long: `rawready cleans tabular data: it fills missing values, drops duplicates,
standardizes column names and text, fixes dates, validates emails and merges
near-duplicate spellings into one canonical value per column.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.rawready/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}

// settings returns the loaded configuration, loading it on first use when
// the command runs outside Execute (as in tests).
func settings() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// newLogger builds the process logger from config; --debug forces debug level.
func newLogger(c *cfgpkg.Global) (*zap.Logger, error) {
	level := c.LogLevel
	if debug {
		level = "debug"
	}
	return logging.New(level, c.LogFormat)
}

// openAudit opens the configured audit store, or returns nil when auditing is
// off.
func openAudit(c *cfgpkg.Global, log *zap.Logger) (*audit.Store, error) {
	if c.AuditDB == "" {
		return nil, nil
	}
	path := utils.ExpandHome(c.AuditDB)
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}
	return audit.Open(path, log)
}
