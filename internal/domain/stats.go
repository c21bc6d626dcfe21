package domain

import "time"

// DateLayout is the calendar date format used for every date bucket in a report.
const DateLayout = "2006-01-02"

// CommitRecord is a single commit as returned by the source API.
// Author is empty when GitHub could not link the commit to an account.
type CommitRecord struct {
	Author string
	Date   time.Time
}

// DailyCommitCount holds the number of commits made on one UTC calendar date.
type DailyCommitCount struct {
	Date    string `json:"date"`
	Commits int    `json:"commits"`
}

// ContributorRanking is one entry of the top contributors list.
type ContributorRanking struct {
	Author  string `json:"author"`
	Commits int    `json:"commits"`
}

// TrendPoint is the search popularity (0-100) of a keyword for one time bucket.
type TrendPoint struct {
	Popularity int    `json:"popularity"`
	Date       string `json:"date"`
}
