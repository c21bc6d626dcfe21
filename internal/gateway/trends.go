package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const (
	// DefaultTrendsBaseURL is the public Google Trends endpoint.
	DefaultTrendsBaseURL = "https://trends.google.com"
	// DefaultTrendsTimeout bounds a lookup when no timeout is configured.
	DefaultTrendsTimeout = 5 * time.Second

	timeseriesWidgetID = "TIMESERIES"
)

// ErrMalformedTrends is returned when a Google Trends response does not have the expected shape.
var ErrMalformedTrends = errors.NewPlain("malformed Google Trends response")

// TrendFetcher defines the behavior of a gateway for fetching search interest over time.
type TrendFetcher interface {
	FetchInterestOverTime(ctx context.Context, keyword string, since time.Time) ([]domain.TrendPoint, error)
}

// TrendsOptions configures a GoogleTrendsGateway.
type TrendsOptions struct {
	BaseURL string
	// Geo restricts results to a region. Empty means worldwide.
	Geo string
	// Language is the host language sent as the hl parameter, e.g. "en-US".
	Language string
	// Timeout bounds the whole lookup, both round trips included.
	// Zero means DefaultTrendsTimeout.
	Timeout time.Duration
}

// GoogleTrendsGateway fetches interest-over-time series from Google Trends.
type GoogleTrendsGateway struct {
	httpClient *http.Client
	opts       TrendsOptions
	logger     logrus.FieldLogger
	now        func() time.Time
}

var _ TrendFetcher = (*GoogleTrendsGateway)(nil)

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type multilineResponse struct {
	Default *struct {
		TimelineData []struct {
			Time  string `json:"time"`
			Value []int  `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}

// NewGoogleTrendsGateway creates a GoogleTrendsGateway with its own pooled HTTP client.
func NewGoogleTrendsGateway(opts TrendsOptions, logger logrus.FieldLogger) *GoogleTrendsGateway {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTrendsBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTrendsTimeout
	}
	return &GoogleTrendsGateway{
		httpClient: cleanhttp.DefaultPooledClient(),
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// FetchInterestOverTime returns one point per time bucket between since and now.
func (g *GoogleTrendsGateway) FetchInterestOverTime(ctx context.Context, keyword string, since time.Time) ([]domain.TrendPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	log := g.logger.WithField("keyword", keyword)
	startTime := time.Now()

	token, widgetRequest, err := g.explore(ctx, keyword, since)
	if err != nil {
		return nil, err
	}
	points, err := g.multiline(ctx, token, widgetRequest)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"elapsed": time.Since(startTime),
		"points":  len(points),
	}).Debug("Google Trends request succeeded")
	return points, nil
}

// explore resolves the token and request of the time series widget for a keyword.
func (g *GoogleTrendsGateway) explore(ctx context.Context, keyword string, since time.Time) (string, json.RawMessage, error) {
	req, err := json.Marshal(exploreRequest{
		ComparisonItem: []comparisonItem{{
			Keyword: keyword,
			Geo:     g.opts.Geo,
			Time:    since.UTC().Format(domain.DateLayout) + " " + g.now().UTC().Format(domain.DateLayout),
		}},
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to encode explore request")
	}

	var explored exploreResponse
	if err := g.get(ctx, "/trends/api/explore", url.Values{"req": {string(req)}}, &explored); err != nil {
		return "", nil, errors.Wrap(err, "failed to explore keyword")
	}
	for _, widget := range explored.Widgets {
		if widget.ID == timeseriesWidgetID && widget.Token != "" && len(widget.Request) > 0 {
			return widget.Token, widget.Request, nil
		}
	}
	return "", nil, errors.Wrap(ErrMalformedTrends, "no time series widget")
}

// multiline fetches the interest-over-time series described by a widget.
func (g *GoogleTrendsGateway) multiline(ctx context.Context, token string, widgetRequest json.RawMessage) ([]domain.TrendPoint, error) {
	params := url.Values{
		"req":   {string(widgetRequest)},
		"token": {token},
	}
	var resp multilineResponse
	if err := g.get(ctx, "/trends/api/widgetdata/multiline", params, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch interest over time")
	}
	if resp.Default == nil || resp.Default.TimelineData == nil {
		return nil, errors.Wrap(ErrMalformedTrends, "missing default.timelineData")
	}

	points := make([]domain.TrendPoint, 0, len(resp.Default.TimelineData))
	for _, item := range resp.Default.TimelineData {
		seconds, err := strconv.ParseInt(item.Time, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedTrends, "invalid timestamp %q", item.Time)
		}
		if len(item.Value) == 0 {
			return nil, errors.Wrapf(ErrMalformedTrends, "no value at %s", item.Time)
		}
		points = append(points, domain.TrendPoint{
			Popularity: item.Value[0],
			Date:       time.Unix(seconds, 0).UTC().Format(domain.DateLayout),
		})
	}
	return points, nil
}

// get performs a GET request against the Trends API and decodes the JSON body.
func (g *GoogleTrendsGateway) get(ctx context.Context, path string, params url.Values, result any) error {
	params.Set("hl", g.opts.Language)
	params.Set("tz", "0")
	endpoint := g.opts.BaseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	res, err := g.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to make API request")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("Google Trends request for %s failed: %s", path, res.Status)
	}

	// Responses are prefixed with an anti-XSSI guard such as ")]}'," before the JSON object.
	start := bytes.IndexByte(body, '{')
	if start < 0 {
		return errors.Wrap(ErrMalformedTrends, "no JSON object in body")
	}
	if err := json.Unmarshal(body[start:], result); err != nil {
		return errors.Wrap(ErrMalformedTrends, err.Error())
	}
	return nil
}
