package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves repository reports over HTTP",
	Long: `Starts an HTTP server answering POST /api/reponame?query=owner/name with the
aggregated report for that repository.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		aggregator, err := newAggregator(cfg)
		if err != nil {
			return err
		}
		if cfg.GitHub.Token == "" {
			logger.Warn("no GitHub token configured, report requests will be rejected")
		}

		srv := server.New(aggregator, server.Options{
			Addr:              cfg.Server.Addr(),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			ShutdownTimeout:   cfg.Server.ShutdownTimeout,
			TokenConfigured:   cfg.GitHub.Token != "",
		}, logger)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "interface to listen on (default 0.0.0.0)")
	serveCmd.Flags().Int("port", 0, "port to listen on (default $PORT or 5000)")
}
