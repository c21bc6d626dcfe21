package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const exploreBody = `)]}'
{"widgets":[{"id":"GEO_MAP","token":"geo-token","request":{}},{"id":"TIMESERIES","token":"ts-token","request":{"time":"2024-04-01 2024-05-01","comparisonItem":[{"keyword":"hello-world"}]}}]}`

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// setupTrendsGateway creates a GoogleTrendsGateway that talks to a mock Trends server.
func setupTrendsGateway(t *testing.T, multiline http.HandlerFunc, timeout time.Duration) (*GoogleTrendsGateway, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/trends/api/explore", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "en-US", q.Get("hl"))
		var req exploreRequest
		require.NoError(t, json.Unmarshal([]byte(q.Get("req")), &req))
		require.Len(t, req.ComparisonItem, 1)
		assert.Equal(t, "hello-world", req.ComparisonItem[0].Keyword)
		assert.Equal(t, "", req.ComparisonItem[0].Geo)
		assert.Equal(t, "2024-04-01 2024-05-01", req.ComparisonItem[0].Time)
		fmt.Fprint(w, exploreBody)
	})
	mux.HandleFunc("/trends/api/widgetdata/multiline", multiline)
	server := httptest.NewServer(mux)

	gateway := NewGoogleTrendsGateway(TrendsOptions{
		BaseURL:  server.URL,
		Language: "en-US",
		Timeout:  timeout,
	}, discardLogger())
	gateway.now = func() time.Time { return fixedNow }
	return gateway, server
}

func TestGoogleTrendsGateway_FetchInterestOverTime(t *testing.T) {
	since := fixedNow.AddDate(0, 0, -30)

	t.Run("happy path - parses the timeline", func(t *testing.T) {
		gateway, server := setupTrendsGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "ts-token", r.URL.Query().Get("token"))
			assert.JSONEq(t, `{"time":"2024-04-01 2024-05-01","comparisonItem":[{"keyword":"hello-world"}]}`, r.URL.Query().Get("req"))
			fmt.Fprint(w, `)]}',
{"default":{"timelineData":[{"time":"1711929600","formattedTime":"Apr 1, 2024","value":[42]},{"time":"1712016000","value":[100]}]}}`)
		}, time.Second)
		defer server.Close()

		points, err := gateway.FetchInterestOverTime(context.Background(), "hello-world", since)
		require.NoError(t, err)
		assert.Equal(t, []domain.TrendPoint{
			{Popularity: 42, Date: "2024-04-01"},
			{Popularity: 100, Date: "2024-04-02"},
		}, points)
	})

	t.Run("empty timeline is not an error", func(t *testing.T) {
		gateway, server := setupTrendsGateway(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `)]}',{"default":{"timelineData":[]}}`)
		}, time.Second)
		defer server.Close()

		points, err := gateway.FetchInterestOverTime(context.Background(), "hello-world", since)
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	malformed := []struct {
		name string
		body string
	}{
		{name: "missing default", body: `)]}',{"other":{}}`},
		{name: "missing timelineData", body: `)]}',{"default":{}}`},
		{name: "point without value", body: `)]}',{"default":{"timelineData":[{"time":"1711929600","value":[]}]}}`},
		{name: "non-numeric time", body: `)]}',{"default":{"timelineData":[{"time":"soon","value":[1]}]}}`},
		{name: "not json", body: `<html>rate limited</html>`},
	}
	for _, tc := range malformed {
		t.Run("malformed payload - "+tc.name, func(t *testing.T) {
			gateway, server := setupTrendsGateway(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}, time.Second)
			defer server.Close()

			points, err := gateway.FetchInterestOverTime(context.Background(), "hello-world", since)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTrends))
			assert.Nil(t, points)
		})
	}

	t.Run("non-200 status", func(t *testing.T) {
		gateway, server := setupTrendsGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, time.Second)
		defer server.Close()

		_, err := gateway.FetchInterestOverTime(context.Background(), "hello-world", since)
		assert.ErrorContains(t, err, "429")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		gateway, server := setupTrendsGateway(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, 50*time.Millisecond)
		defer server.Close()
		defer close(release)

		_, err := gateway.FetchInterestOverTime(context.Background(), "hello-world", since)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("network error", func(t *testing.T) {
		gateway, server := setupTrendsGateway(t, func(w http.ResponseWriter, r *http.Request) {}, time.Second)
		server.Close()

		_, err := gateway.FetchInterestOverTime(context.Background(), "hello-world", since)
		assert.ErrorContains(t, err, "failed to make API request")
	})
}

func TestNewGoogleTrendsGateway_Defaults(t *testing.T) {
	testCases := []struct {
		name            string
		opts            TrendsOptions
		expectedURL     string
		expectedTimeout time.Duration
	}{
		{name: "empty options", opts: TrendsOptions{}, expectedURL: DefaultTrendsBaseURL, expectedTimeout: DefaultTrendsTimeout},
		{name: "zero timeout", opts: TrendsOptions{BaseURL: "https://trends.example.com/"}, expectedURL: "https://trends.example.com", expectedTimeout: DefaultTrendsTimeout},
		{name: "explicit timeout", opts: TrendsOptions{Timeout: time.Second}, expectedURL: DefaultTrendsBaseURL, expectedTimeout: time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := NewGoogleTrendsGateway(tc.opts, discardLogger())
			assert.Equal(t, tc.expectedURL, gateway.opts.BaseURL)
			assert.Equal(t, tc.expectedTimeout, gateway.opts.Timeout)
		})
	}
}
