package cmd

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

func TestSummarize(t *testing.T) {
	report := &domain.RepositoryReport{
		CommitsPerDay: []domain.DailyCommitCount{
			{Date: "2024-05-01", Commits: 1},
			{Date: "2024-05-02", Commits: 4},
			{Date: "2024-05-03", Commits: 2},
		},
		TopicInterest: []domain.TrendPoint{
			{Popularity: 40, Date: "2024-05-01"},
			{Popularity: 100, Date: "2024-05-02"},
		},
	}

	s := summarize(report)

	assert.InDelta(t, 7.0/3.0, s.MeanCommitsPerDay, 1e-9)
	assert.Equal(t, 2.0, s.MedianCommitsPerDay)
	assert.Equal(t, 70.0, s.MeanInterest)
	assert.Equal(t, 100.0, s.PeakInterest)
}

func TestSummarize_EmptyReport(t *testing.T) {
	assert.Equal(t, activityStats{}, summarize(&domain.RepositoryReport{}))
}

func TestPrintSummary(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	release := "v1.0"
	report := &domain.RepositoryReport{
		RepoName:      "hello-world",
		Stars:         12,
		Forks:         3,
		Contributors:  2,
		LatestRelease: &release,
		Languages:     []domain.LanguageBreakdown{{Language: "Go", BytesOfCode: 900}},
		CommitsPerDay: []domain.DailyCommitCount{{Date: "2024-05-01", Commits: 2}},
		TopContributors: []domain.ContributorRanking{
			{Author: "alice", Commits: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "hello-world\n")
	assert.Contains(t, out, "Stars: 12  Forks: 3  Contributors: 2")
	assert.Contains(t, out, "Latest release: v1.0")
	assert.Contains(t, out, "Go")
	assert.Contains(t, out, "1 active days, 2.00 commits/day on average (median 2.0)")
	assert.Contains(t, out, " 1. alice")
	assert.Contains(t, out, "Search interest\n  unavailable\n")
}

func TestPrintSummary_NoCommitActivity(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, &domain.RepositoryReport{RepoName: "empty"}))

	out := buf.String()
	assert.NotContains(t, out, "NaN")
	assert.Contains(t, out, "0 active days, 0.00 commits/day on average (median 0.0)")
	assert.Contains(t, out, "Search interest\n  unavailable\n")
}
