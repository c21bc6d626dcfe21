// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/gateway"
)

// DefaultTrendWindow is how far back topic interest is looked up.
const DefaultTrendWindow = 30 * 24 * time.Hour

// ReportError is returned when a required part of a report could not be fetched.
type ReportError struct {
	Op  string
	Err error
}

func (e *ReportError) Error() string {
	return "failed to fetch repository data: " + e.Op + ": " + e.Err.Error()
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Aggregator is the use case for building repository reports.
// It orchestrates the fetching and combining of data, one step at a time.
type Aggregator struct {
	fetcher     gateway.Fetcher
	trends      gateway.TrendFetcher
	logger      logrus.FieldLogger
	trendWindow time.Duration
	now         func() time.Time
}

// NewAggregator creates a new Aggregator instance.
// A non-positive trendWindow falls back to DefaultTrendWindow.
func NewAggregator(fetcher gateway.Fetcher, trends gateway.TrendFetcher, trendWindow time.Duration, logger logrus.FieldLogger) *Aggregator {
	if trendWindow <= 0 {
		trendWindow = DefaultTrendWindow
	}
	return &Aggregator{
		fetcher:     fetcher,
		trends:      trends,
		logger:      logger,
		trendWindow: trendWindow,
		now:         time.Now,
	}
}

// strict turns the failure of a required step into a ReportError, which
// aborts the whole report.
func strict(op string, err error) error {
	return &ReportError{Op: op, Err: err}
}

// bestEffort runs a step whose failure must not abort the report. On error it
// logs a warning and returns fallback(value), where value is whatever the step
// produced before failing.
func bestEffort[T any](log logrus.FieldLogger, op string, fallback func(T) T, fetch func() (T, error)) T {
	value, err := fetch()
	if err != nil {
		log.WithError(err).WithField("op", op).Warn("degraded report: step failed")
		return fallback(value)
	}
	return value
}

func keepPartial[T any](v T) T { return v }

func discard[T any](T) T {
	var zero T
	return zero
}

// FetchReport fetches every part of the report for identifier, sequentially.
func (a *Aggregator) FetchReport(ctx context.Context, identifier string) (*domain.RepositoryReport, error) {
	id, err := domain.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	log := a.logger.WithField("repository", id.String())
	log.Info("Usecase: Fetching repository data...")

	info, err := a.fetcher.FetchRepository(ctx, id)
	if err != nil {
		return nil, strict("repository", err)
	}
	issues, err := a.fetcher.FetchOpenIssues(ctx, id)
	if err != nil {
		return nil, strict("open issues", err)
	}
	releases, err := a.fetcher.FetchReleases(ctx, id)
	if err != nil {
		return nil, strict("releases", err)
	}
	languages, err := a.fetcher.FetchLanguages(ctx, id)
	if err != nil {
		return nil, strict("languages", err)
	}

	// A failed page leaves the count short of the real total.
	contributors := bestEffort(log, "contributors", keepPartial[int], func() (int, error) {
		return a.fetcher.CountContributors(ctx, id)
	})

	commits, err := a.fetcher.FetchRecentCommits(ctx, id)
	if err != nil {
		return nil, strict("commits", err)
	}
	activity := AnalyzeCommits(commits)

	since := a.now().Add(-a.trendWindow)
	interest := bestEffort(log, "topic interest", discard[[]domain.TrendPoint], func() ([]domain.TrendPoint, error) {
		return a.trends.FetchInterestOverTime(ctx, id.Name, since)
	})

	report := &domain.RepositoryReport{
		RepoName:         info.Name,
		Description:      info.Description,
		Stars:            info.Stars,
		Forks:            info.Forks,
		CreatedAt:        info.CreatedAt,
		UpdatedAt:        info.UpdatedAt,
		Homepage:         info.Homepage,
		LatestOpenIssues: nonNil(issues),
		Releases:         nonNil(releases),
		Languages:        nonNil(languages),
		Contributors:     contributors,
		CommitsPerDay:    activity.CommitsPerDay,
		TopContributors:  activity.TopContributors,
		TopicInterest:    nonNil(interest),
	}
	if len(releases) > 0 {
		latest := releases[0].Name
		report.LatestRelease = &latest
	}

	log.Info("Usecase: Report complete.")
	return report, nil
}

// nonNil makes empty sequences serialize as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
