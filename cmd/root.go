// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/config"
	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/usecase"
)

var rootFlags struct {
	ConfigFile string
	Debug      bool
}

// cfg holds the resolved configuration once PersistentPreRunE has run.
var cfg *config.Config

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "repo-insights",
	Short: "Aggregates public GitHub repository metadata into one report.",
	Long: `repo-insights builds a single JSON report for a GitHub repository: basic stats,
open issues, releases, languages, contributors, recent commit activity and
search interest from Google Trends. It can serve reports over HTTP or print one.`,

	// Errors are printed by Execute.
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(rootFlags.ConfigFile, cmd.Flags())
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		if err := setupLogger(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		// In debug mode, include the stack trace recorded by emperror.
		if rootFlags.Debug {
			_, _ = fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.ConfigFile, "config", "", "config file (default ./repo-insights.yaml or $HOME/.config/repo-insights/repo-insights.yaml)")
	flags.BoolVar(&rootFlags.Debug, "debug", false, "enable verbose debug logging")
	flags.String("token", "", "GitHub token (default $GITHUB_TOKEN)")
	flags.String("github-url", "", "GitHub Enterprise Server base URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
}

func setupLogger(c config.Log) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if rootFlags.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(c.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.WithField("level", level).Debug("enabled debug logging")
	return nil
}

// newAggregator wires the gateways described by c into an Aggregator.
func newAggregator(c *config.Config) (*usecase.Aggregator, error) {
	githubGateway, err := gateway.NewGitHubGateway(gateway.GitHubOptions{
		Token:                  c.GitHub.Token,
		BaseURL:                c.GitHub.BaseURL,
		SecondaryRateLimitWait: c.GitHub.SecondaryRateLimitWait,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GitHub gateway")
	}
	trendsGateway := gateway.NewGoogleTrendsGateway(gateway.TrendsOptions{
		BaseURL:  c.Trends.BaseURL,
		Geo:      c.Trends.Geo,
		Language: c.Trends.Language,
		Timeout:  c.Trends.Timeout,
	}, logger)
	return usecase.NewAggregator(githubGateway, trendsGateway, c.Trends.Window, logger), nil
}
