package domain

import (
	"encoding/json"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    RepositoryIdentifier
		expectError bool
	}{
		{name: "owner and name", input: "octocat/hello-world", expected: RepositoryIdentifier{Owner: "octocat", Name: "hello-world"}},
		{name: "no separator", input: "octocat", expectError: true},
		{name: "empty owner", input: "/hello-world", expectError: true},
		{name: "empty name", input: "octocat/", expectError: true},
		{name: "empty string", input: "", expectError: true},
		{name: "too many segments", input: "a/b/c", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseIdentifier(tc.input)
			if tc.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidIdentifier))
				assert.Contains(t, err.Error(), "invalid repository identifier")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
			assert.Equal(t, tc.input, id.String())
		})
	}
}

func TestRepositoryReport_JSONShape(t *testing.T) {
	report := RepositoryReport{
		RepoName:         "hello-world",
		CreatedAt:        time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		LatestOpenIssues: []IssueSummary{{Title: "bug", Author: "octocat", URL: "https://example.com/1"}},
		Releases:         []ReleaseSummary{{Name: "v1.0"}},
		Languages:        []LanguageBreakdown{{Language: "Go", BytesOfCode: 42}},
		CommitsPerDay:    []DailyCommitCount{},
		TopContributors:  []ContributorRanking{},
		TopicInterest:    []TrendPoint{},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "hello-world", decoded["repoName"])
	assert.Nil(t, decoded["description"])
	assert.Nil(t, decoded["homepage"])
	assert.NotContains(t, decoded, "latest_release")
	assert.Equal(t, "2020-01-02T03:04:05Z", decoded["created_at"])
	assert.Equal(t, []any{map[string]any{"issue": "bug", "user": "octocat", "href": "https://example.com/1"}}, decoded["latest_open_issues"])
	assert.Equal(t, []any{map[string]any{"release": "v1.0"}}, decoded["releases"])
	assert.Equal(t, []any{map[string]any{"language": "Go", "loc": float64(42)}}, decoded["languages"])
	assert.Equal(t, []any{}, decoded["topic_interest"])
}
