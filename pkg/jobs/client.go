// Package jobs provides a client for a JSearch-compatible job-listing
// search API.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/resilience"
)

const defaultBaseURL = "https://api.jsearch.dev"

// Client searches public job listings.
type Client interface {
	// Search returns job listings matching the query (typically an
	// employer name).
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// SearchResponse is the parsed search response.
type SearchResponse struct {
	Status string    `json:"status"`
	Data   []Listing `json:"data"`
}

// Listing is a single job listing.
type Listing struct {
	Title       string `json:"job_title"`
	Employer    string `json:"employer_name"`
	Location    string `json:"job_location"`
	ApplyLink   string `json:"job_apply_link"`
	PostedAt    string `json:"job_posted_at"`
	Description string `json:"job_description,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
	breaker *resilience.CircuitBreaker
}

// NewClient creates a job-search API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		retry:   resilience.DefaultPolicy(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	reqURL := fmt.Sprintf("%s/search?query=%s", c.baseURL, url.QueryEscape(query))

	body, err := resilience.Retry(ctx, c.retry, "jobs.search",
		func(ctx context.Context) ([]byte, error) {
			return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
				return c.fetch(ctx, reqURL)
			})
		})
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jobs: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: send request")
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("jobs: unexpected status %d: %s", resp.StatusCode, string(b))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}
	return b, nil
}
