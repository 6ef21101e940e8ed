package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rawready/internal/analysis"
	cfgpkg "github.com/KaramelBytes/rawready/internal/config"
	"github.com/KaramelBytes/rawready/internal/server"
)

var svAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cleaner over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		opt, err := c.CleanOptions()
		if err != nil {
			return err
		}
		delim, err := cfgpkg.ParseDelimiter(c.Delimiter)
		if err != nil {
			return err
		}
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		store, err := openAudit(c, log)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		addr := c.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = svAddr
		}
		srv := server.New(server.Options{
			Addr:           addr,
			MaxUploadBytes: int64(c.MaxUploadMB) << 20,
			RateLimit:      c.RateLimitPerSec,
			Delimiter:      delim,
			Clean:          opt,
			Profile:        analysis.DefaultOptions(),
		}, store, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log.Info("starting server",
			zap.String("addr", addr),
			zap.Bool("audit", store != nil),
			zap.Float64("rate_limit_per_sec", c.RateLimitPerSec),
		)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&svAddr, "addr", ":8080", "listen address (default from config listen_addr)")
}
