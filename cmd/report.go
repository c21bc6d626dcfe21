package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"emperror.dev/errors"
	"github.com/fatih/color"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

var reportCmd = &cobra.Command{
	Use:   "report owner/name",
	Short: "Builds the report for one repository and prints it",
	Long:  `Builds the same report the HTTP server returns and prints it as indented JSON, or as a short human readable summary with --summary.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GitHub.Token == "" {
			return errors.New("GitHub token is required: set GITHUB_TOKEN or pass --token")
		}
		aggregator, err := newAggregator(cfg)
		if err != nil {
			return err
		}

		report, err := aggregator.FetchReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		summary, _ := cmd.Flags().GetBool("summary")
		if summary {
			return printSummary(cmd.OutOrStdout(), report)
		}

		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal report to JSON")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return err
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().Bool("summary", false, "print a human readable summary instead of JSON")
}

// activityStats summarizes the per-day series of a report.
type activityStats struct {
	MeanCommitsPerDay   float64
	MedianCommitsPerDay float64
	MeanInterest        float64
	PeakInterest        float64
}

func summarize(report *domain.RepositoryReport) activityStats {
	var s activityStats

	perDay := make([]float64, 0, len(report.CommitsPerDay))
	for _, day := range report.CommitsPerDay {
		perDay = append(perDay, float64(day.Commits))
	}
	// stats returns NaN for empty input, so empty series keep the zero values.
	if len(perDay) > 0 {
		s.MeanCommitsPerDay, _ = stats.Mean(perDay)
		s.MedianCommitsPerDay, _ = stats.Median(perDay)
	}

	interest := make([]float64, 0, len(report.TopicInterest))
	for _, point := range report.TopicInterest {
		interest = append(interest, float64(point.Popularity))
	}
	if len(interest) > 0 {
		s.MeanInterest, _ = stats.Mean(interest)
		s.PeakInterest, _ = stats.Max(interest)
	}
	return s
}

func printSummary(w io.Writer, report *domain.RepositoryReport) error {
	heading := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)
	s := summarize(report)

	_, _ = heading.Fprintln(w, report.RepoName)
	if report.Description != nil {
		fmt.Fprintln(w, *report.Description)
	}
	_, _ = label.Fprint(w, "Stars: ")
	fmt.Fprintf(w, "%d  ", report.Stars)
	_, _ = label.Fprint(w, "Forks: ")
	fmt.Fprintf(w, "%d  ", report.Forks)
	_, _ = label.Fprint(w, "Contributors: ")
	fmt.Fprintf(w, "%d\n", report.Contributors)
	if report.LatestRelease != nil {
		_, _ = label.Fprint(w, "Latest release: ")
		fmt.Fprintln(w, *report.LatestRelease)
	}
	_, _ = label.Fprint(w, "Open issues: ")
	fmt.Fprintf(w, "%d\n", len(report.LatestOpenIssues))

	if len(report.Languages) > 0 {
		_, _ = heading.Fprintln(w, "Languages")
		for _, l := range report.Languages {
			fmt.Fprintf(w, "  %-20s %d bytes\n", l.Language, l.BytesOfCode)
		}
	}

	_, _ = heading.Fprintln(w, "Commit activity")
	fmt.Fprintf(w, "  %d active days, %.2f commits/day on average (median %.1f)\n",
		len(report.CommitsPerDay), s.MeanCommitsPerDay, s.MedianCommitsPerDay)
	for i, c := range report.TopContributors {
		fmt.Fprintf(w, "  %2d. %-20s %d\n", i+1, c.Author, c.Commits)
	}

	_, _ = heading.Fprintln(w, "Search interest")
	if len(report.TopicInterest) == 0 {
		_, err := fmt.Fprintln(w, "  unavailable")
		return err
	}
	_, err := fmt.Fprintf(w, "  average %.1f, peak %.0f over %d points\n", s.MeanInterest, s.PeakInterest, len(report.TopicInterest))
	return err
}
