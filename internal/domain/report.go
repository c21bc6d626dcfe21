// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"strings"
	"time"

	"emperror.dev/errors"
)

// ErrInvalidIdentifier is returned when a repository identifier is not of the form "owner/name".
var ErrInvalidIdentifier = errors.NewPlain("expected owner/name")

// RepositoryIdentifier names a hosted repository.
type RepositoryIdentifier struct {
	Owner string
	Name  string
}

// ParseIdentifier splits an "owner/name" string into its two segments.
func ParseIdentifier(s string) (RepositoryIdentifier, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepositoryIdentifier{}, errors.Wrapf(ErrInvalidIdentifier, "invalid repository identifier %q", s)
	}
	return RepositoryIdentifier{Owner: parts[0], Name: parts[1]}, nil
}

func (id RepositoryIdentifier) String() string {
	return id.Owner + "/" + id.Name
}

// RepositoryInfo is the base metadata of a repository.
type RepositoryInfo struct {
	Name        string
	Description *string
	Stars       int
	Forks       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Homepage    *string
}

// IssueSummary describes one open issue.
type IssueSummary struct {
	Title  string `json:"issue"`
	Author string `json:"user"`
	URL    string `json:"href"`
}

// ReleaseSummary holds the display name of a release, or its tag when unnamed.
type ReleaseSummary struct {
	Name string `json:"release"`
}

// LanguageBreakdown is the number of bytes of code written in one language.
type LanguageBreakdown struct {
	Language    string `json:"language"`
	BytesOfCode int    `json:"loc"`
}

// RepositoryReport is the aggregated view of a repository returned to clients.
type RepositoryReport struct {
	RepoName         string               `json:"repoName"`
	Description      *string              `json:"description"`
	Stars            int                  `json:"stars"`
	Forks            int                  `json:"forks"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Homepage         *string              `json:"homepage"`
	LatestOpenIssues []IssueSummary       `json:"latest_open_issues"`
	Releases         []ReleaseSummary     `json:"releases"`
	Languages        []LanguageBreakdown  `json:"languages"`
	Contributors     int                  `json:"contributors"`
	LatestRelease    *string              `json:"latest_release,omitempty"`
	CommitsPerDay    []DailyCommitCount   `json:"commits_per_day"`
	TopContributors  []ContributorRanking `json:"top_contributors"`
	TopicInterest    []TrendPoint         `json:"topic_interest"`
}
