// Package covidapi fetches whole-dataset payloads from the covid19india.org
// v4 min API over HTTPS.
package covidapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
)

// datasetPaths maps dataset kinds to their fixed endpoint paths.
var datasetPaths = map[domain.Dataset]string{
	domain.DatasetTimeseries: "timeseries.min.json",
	domain.DatasetDaily:      "data.min.json",
}

// Client performs one HTTPS GET per dataset fetch. There is no retry: a
// failed fetch is fatal to the caller, which either serves cached data from a
// prior run or surfaces the error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an API client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch downloads the named dataset and returns the raw response body.
// All failure modes wrap domain.ErrUpstream and name the dataset.
func (c *Client) Fetch(ctx context.Context, ds domain.Dataset) ([]byte, error) {
	path, ok := datasetPaths[ds]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dataset %q", domain.ErrUpstream, ds)
	}

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s URL: %v", domain.ErrUpstream, ds, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s request: %v", domain.ErrUpstream, ds, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(string(ds), "error").Inc()
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrUpstream, ds, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.FetchRequests.WithLabelValues(string(ds), "error").Inc()
		return nil, fmt.Errorf("%w: fetch %s: status %d", domain.ErrUpstream, ds, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(string(ds), "error").Inc()
		return nil, fmt.Errorf("%w: read %s body: %v", domain.ErrUpstream, ds, err)
	}

	c.metrics.FetchRequests.WithLabelValues(string(ds), "success").Inc()
	c.metrics.FetchDuration.WithLabelValues(string(ds)).Observe(time.Since(start).Seconds())
	c.logger.Info("dataset fetched", "dataset", ds, "bytes", len(body), "duration", time.Since(start))

	return body, nil
}
