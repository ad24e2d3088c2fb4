// Package analytics implements the AnalyticsWarehouse port against an HTTP
// job-style query engine: queries are submitted, polled by job handle, and
// cancellable, with a per-query byte-processing cap.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"TrafficSync/internal/config"
	"TrafficSync/internal/domain"
	"TrafficSync/internal/ports"
)

// resultTimeout bounds the blocking results call; the cheapest tier relies on
// this instead of a poll loop.
const resultTimeout = 45 * time.Second

// Client talks to the traffic-event warehouse.
type Client struct {
	httpClient *http.Client
	baseURL    string
	project    string
	dataset    string
	token      string
	host       string
	section    string
	logger     *slog.Logger
}

var _ ports.AnalyticsWarehouse = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a 30s-timeout default.
func NewClient(cfg config.AnalyticsConfig, content config.ContentConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		project:    cfg.Project,
		dataset:    cfg.Dataset,
		token:      cfg.Token,
		host:       content.Host,
		section:    content.Section,
		logger:     logger,
	}
}

type submitRequest struct {
	Query              string `json:"query"`
	MaximumBytesBilled int64  `json:"maximumBytesBilled"`
	UseQueryCache      bool   `json:"useQueryCache"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type jobStatusResponse struct {
	State        string `json:"state"`
	ErrorMessage string `json:"errorMessage"`
}

type resultsResponse struct {
	Rows []resultRow `json:"rows"`
}

type resultRow struct {
	PageLocation          string `json:"page_location"`
	Pageviews             int    `json:"pageviews"`
	OrganicSessions       int    `json:"organic_sessions"`
	EngagedSessions       int    `json:"engaged_sessions"`
	TotalEngagementTimeMs int64  `json:"total_engagement_time_msec"`
	TotalSessions         int    `json:"total_sessions"`
}

// PartitionExists probes the daily partition table metadata; 404 means absent.
func (c *Client) PartitionExists(ctx context.Context, dateSuffix string) (bool, error) {
	url := fmt.Sprintf("%s/projects/%s/datasets/%s/tables/events_%s", c.baseURL, c.project, c.dataset, dateSuffix)

	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &domain.RemoteError{Op: "partition probe", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &domain.RemoteError{Op: "partition probe", Err: fmt.Errorf("engine returned %s", resp.Status)}
	}
}

// Submit renders the tier query and starts a warehouse job.
func (c *Client) Submit(ctx context.Context, query ports.AnalyticsQuery) (ports.AnalyticsJob, error) {
	body, err := json.Marshal(submitRequest{
		Query:              buildAggregationQuery(c.project, c.dataset, c.host, c.section, query),
		MaximumBytesBilled: query.MaxBytes,
		UseQueryCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/queries", c.baseURL, c.project)
	resp, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.RemoteError{Op: "submit query", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &domain.RemoteError{Op: "submit query", Err: fmt.Errorf("engine returned %s", resp.Status)}
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if submitted.JobID == "" {
		return nil, &domain.RemoteError{Op: "submit query", Err: fmt.Errorf("engine returned no job id")}
	}

	c.debug("query submitted", "job", submitted.JobID, "partitions", len(query.Partitions), "max_bytes", query.MaxBytes)
	return &job{client: c, id: submitted.JobID}, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// job is a handle to a submitted warehouse query.
type job struct {
	client *Client
	id     string
}

var _ ports.AnalyticsJob = (*job)(nil)

func (j *job) ID() string {
	return j.id
}

// Done polls the job state once. A DONE state carrying an engine error message
// surfaces as an error so the tier degrades.
func (j *job) Done(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/projects/%s/queries/%s", j.client.baseURL, j.client.project, j.id)

	resp, err := j.client.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &domain.RemoteError{Op: "poll job", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &domain.RemoteError{Op: "poll job", Err: fmt.Errorf("engine returned %s", resp.Status)}
	}

	var status jobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("decode job status: %w", err)
	}

	if status.ErrorMessage != "" {
		return false, &domain.RemoteError{Op: "poll job", Err: fmt.Errorf("job %s failed: %s", j.id, status.ErrorMessage)}
	}

	return status.State == "DONE", nil
}

// Result fetches the aggregated rows.
func (j *job) Result(ctx context.Context) ([]domain.RawMetricAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, resultTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/projects/%s/queries/%s/results", j.client.baseURL, j.client.project, j.id)

	resp, err := j.client.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.RemoteError{Op: "fetch results", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.RemoteError{Op: "fetch results", Err: fmt.Errorf("engine returned %s", resp.Status)}
	}

	var results resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	rows := make([]domain.RawMetricAggregate, 0, len(results.Rows))
	for _, row := range results.Rows {
		rows = append(rows, domain.RawMetricAggregate{
			PageLocation:          row.PageLocation,
			Pageviews:             row.Pageviews,
			OrganicSessions:       row.OrganicSessions,
			EngagedSessions:       row.EngagedSessions,
			TotalEngagementTimeMs: row.TotalEngagementTimeMs,
			TotalSessions:         row.TotalSessions,
		})
	}

	return rows, nil
}

// Cancel abandons the remote job.
func (j *job) Cancel(ctx context.Context) error {
	url := fmt.Sprintf("%s/projects/%s/queries/%s", j.client.baseURL, j.client.project, j.id)

	resp, err := j.client.do(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return &domain.RemoteError{Op: "cancel job", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &domain.RemoteError{Op: "cancel job", Err: fmt.Errorf("engine returned %s", resp.Status)}
	}

	return nil
}
