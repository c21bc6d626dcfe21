package usecase

import (
	"sort"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const topContributorsLimit = 10

// CommitActivity is the result of analyzing a list of recent commits.
type CommitActivity struct {
	CommitsPerDay   []domain.DailyCommitCount
	TopContributors []domain.ContributorRanking
}

// AnalyzeCommits groups commits by UTC date and ranks their authors.
// Input is expected newest first, as GitHub returns it. Commits without an
// author login or date are ignored.
func AnalyzeCommits(commits []domain.CommitRecord) CommitActivity {
	// Walk oldest first so dates and authors are recorded in chronological order.
	dayIndex := make(map[string]int)
	authorIndex := make(map[string]int)
	perDay := make([]domain.DailyCommitCount, 0)
	ranking := make([]domain.ContributorRanking, 0)

	for i := len(commits) - 1; i >= 0; i-- {
		commit := commits[i]
		if commit.Author == "" || commit.Date.IsZero() {
			continue
		}

		date := commit.Date.UTC().Format(domain.DateLayout)
		if idx, ok := dayIndex[date]; ok {
			perDay[idx].Commits++
		} else {
			dayIndex[date] = len(perDay)
			perDay = append(perDay, domain.DailyCommitCount{Date: date, Commits: 1})
		}

		if idx, ok := authorIndex[commit.Author]; ok {
			ranking[idx].Commits++
		} else {
			authorIndex[commit.Author] = len(ranking)
			ranking = append(ranking, domain.ContributorRanking{Author: commit.Author, Commits: 1})
		}
	}

	// Stable so that authors with equal counts keep their first-seen order.
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Commits > ranking[j].Commits
	})
	if len(ranking) > topContributorsLimit {
		ranking = ranking[:topContributorsLimit]
	}

	return CommitActivity{
		CommitsPerDay:   perDay,
		TopContributors: ranking,
	}
}
