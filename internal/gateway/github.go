// Package gateway provides gateways to the GitHub and Google Trends APIs,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const (
	issuesPerPage       = 30
	releasesPerPage     = 30
	contributorsPerPage = 100
	commitsPerPage      = 100
)

// Fetcher defines the behavior of a gateway for fetching repository information from GitHub.
type Fetcher interface {
	FetchRepository(ctx context.Context, id domain.RepositoryIdentifier) (*domain.RepositoryInfo, error)
	FetchOpenIssues(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.IssueSummary, error)
	FetchReleases(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.ReleaseSummary, error)
	FetchLanguages(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.LanguageBreakdown, error)
	// CountContributors returns the number of contributors counted so far together
	// with the error that interrupted pagination, if any.
	CountContributors(ctx context.Context, id domain.RepositoryIdentifier) (int, error)
	FetchRecentCommits(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.CommitRecord, error)
}

// GitHubOptions configures the HTTP stack of a GitHubGateway.
type GitHubOptions struct {
	Token string
	// BaseURL points the gateway at a GitHub Enterprise Server instance. Empty means github.com.
	BaseURL string
	// SecondaryRateLimitWait is the longest single sleep allowed when GitHub answers
	// with a secondary rate limit. Zero disables the guard.
	SecondaryRateLimitWait time.Duration
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        logrus.FieldLogger
}

var _ Fetcher = (*GitHubGateway)(nil)

// repositoryQuery fetches the base metadata of a repository.
type repositoryQuery struct {
	Repository struct {
		Name           string
		Description    *string
		StargazerCount int
		ForkCount      int
		CreatedAt      githubv4.DateTime
		UpdatedAt      githubv4.DateTime
		HomepageURL    *string `graphql:"homepageUrl"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts GitHubOptions, logger logrus.FieldLogger) (*GitHubGateway, error) {
	var base http.RoundTripper = cleanhttp.DefaultPooledTransport()
	if opts.SecondaryRateLimitWait > 0 {
		waiter, err := github_ratelimit.NewRateLimitWaiter(base, github_ratelimit.WithSingleSleepLimit(opts.SecondaryRateLimitWait, nil))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create rate limit waiter")
		}
		base = waiter
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   base,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		restClient, err = restClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid GitHub base URL %q", opts.BaseURL)
		}
		graphqlClient = githubv4.NewEnterpriseClient(strings.TrimSuffix(opts.BaseURL, "/")+"/api/graphql", httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}, nil
}

// call runs one GitHub API request and logs its outcome and duration.
func (g *GitHubGateway) call(op string, id domain.RepositoryIdentifier, fn func() error) (reterr error) {
	log := g.logger.WithFields(logrus.Fields{"op": op, "repository": id.String()})
	log.Debug("executing GitHub API request...")
	startTime := time.Now()
	defer func() {
		log := log.WithField("elapsed", time.Since(startTime))
		if reterr != nil {
			log.WithError(reterr).Debug("GitHub API request failed")
		} else {
			log.Debug("GitHub API request succeeded")
		}
	}()
	return fn()
}

// FetchRepository fetches the base metadata of a repository with a single GraphQL query.
func (g *GitHubGateway) FetchRepository(ctx context.Context, id domain.RepositoryIdentifier) (*domain.RepositoryInfo, error) {
	var q repositoryQuery
	variables := map[string]any{
		"owner": githubv4.String(id.Owner),
		"name":  githubv4.String(id.Name),
	}
	err := g.call("repository", id, func() error {
		return g.graphqlClient.Query(ctx, &q, variables)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query repository")
	}
	r := q.Repository
	return &domain.RepositoryInfo{
		Name:        r.Name,
		Description: r.Description,
		Stars:       r.StargazerCount,
		Forks:       r.ForkCount,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
		Homepage:    r.HomepageURL,
	}, nil
}

// FetchOpenIssues returns the most recent open issues, newest first.
func (g *GitHubGateway) FetchOpenIssues(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.IssueSummary, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: issuesPerPage},
	}
	var issues []*github.Issue
	err := g.call("issues", id, func() error {
		var err error
		issues, _, err = g.restClient.Issues.ListByRepo(ctx, id.Owner, id.Name, opts)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open issues")
	}

	summaries := make([]domain.IssueSummary, 0, len(issues))
	for _, issue := range issues {
		summaries = append(summaries, domain.IssueSummary{
			Title:  issue.GetTitle(),
			Author: issue.GetUser().GetLogin(),
			URL:    issue.GetHTMLURL(),
		})
	}
	return summaries, nil
}

// FetchReleases returns the most recent releases, most recent first.
func (g *GitHubGateway) FetchReleases(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.ReleaseSummary, error) {
	opts := &github.ListOptions{PerPage: releasesPerPage}
	var releases []*github.RepositoryRelease
	err := g.call("releases", id, func() error {
		var err error
		releases, _, err = g.restClient.Repositories.ListReleases(ctx, id.Owner, id.Name, opts)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list releases")
	}

	summaries := make([]domain.ReleaseSummary, 0, len(releases))
	for _, release := range releases {
		name := release.GetName()
		if name == "" {
			name = release.GetTagName()
		}
		summaries = append(summaries, domain.ReleaseSummary{Name: name})
	}
	return summaries, nil
}

// FetchLanguages returns the language breakdown, largest language first.
func (g *GitHubGateway) FetchLanguages(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.LanguageBreakdown, error) {
	var languages map[string]int
	err := g.call("languages", id, func() error {
		var err error
		languages, _, err = g.restClient.Repositories.ListLanguages(ctx, id.Owner, id.Name)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list languages")
	}

	breakdown := make([]domain.LanguageBreakdown, 0, len(languages))
	for language, bytes := range languages {
		breakdown = append(breakdown, domain.LanguageBreakdown{Language: language, BytesOfCode: bytes})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].BytesOfCode != breakdown[j].BytesOfCode {
			return breakdown[i].BytesOfCode > breakdown[j].BytesOfCode
		}
		return breakdown[i].Language < breakdown[j].Language
	})
	return breakdown, nil
}

// CountContributors pages through every contributor, anonymous ones included.
// Pagination stops at the first empty or short page. When a page fails the
// count accumulated so far is returned alongside the error.
func (g *GitHubGateway) CountContributors(ctx context.Context, id domain.RepositoryIdentifier) (int, error) {
	opts := &github.ListContributorsOptions{
		Anon:        "true",
		ListOptions: github.ListOptions{PerPage: contributorsPerPage, Page: 1},
	}
	count := 0
	for {
		var contributors []*github.Contributor
		err := g.call("contributors", id, func() error {
			var err error
			contributors, _, err = g.restClient.Repositories.ListContributors(ctx, id.Owner, id.Name, opts)
			return err
		})
		if err != nil {
			return count, errors.Wrapf(err, "failed to list contributors page %d", opts.Page)
		}
		count += len(contributors)
		if len(contributors) < contributorsPerPage {
			break
		}
		opts.Page++
		g.logger.WithField("page", opts.Page).Debug("fetching next page of contributors...")
	}
	return count, nil
}

// FetchRecentCommits returns the most recent commits on the default branch, newest first.
func (g *GitHubGateway) FetchRecentCommits(ctx context.Context, id domain.RepositoryIdentifier) ([]domain.CommitRecord, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: commitsPerPage}}
	var commits []*github.RepositoryCommit
	err := g.call("commits", id, func() error {
		var err error
		commits, _, err = g.restClient.Repositories.ListCommits(ctx, id.Owner, id.Name, opts)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list commits")
	}

	records := make([]domain.CommitRecord, 0, len(commits))
	for _, commit := range commits {
		records = append(records, domain.CommitRecord{
			Author: commit.GetAuthor().GetLogin(),
			Date:   commit.GetCommit().GetAuthor().GetDate().Time,
		})
	}
	return records, nil
}
