// Package github provides a minimal client for the GitHub REST API, used
// to size a company's open-source footprint.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-intel/internal/resilience"
)

const defaultBaseURL = "https://api.github.com"

// Client defines the GitHub API operations used by the market adapter.
type Client interface {
	// GetOrg fetches an organization's public profile.
	GetOrg(ctx context.Context, org string) (*Org, error)
	// ListRepos lists an organization's public repositories, most-starred
	// first, up to one page.
	ListRepos(ctx context.Context, org string) ([]Repo, error)
}

// Org is a GitHub organization profile.
type Org struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Blog        string `json:"blog"`
	Location    string `json:"location"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Repo is a single repository.
type Repo struct {
	Name     string `json:"name"`
	Stars    int    `json:"stargazers_count"`
	Language string `json:"language"`
	Fork     bool   `json:"fork"`
	Archived bool   `json:"archived"`
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

// WithRateLimit sets the client-side request rate. The unauthenticated API
// budget is 60 requests/hour, so callers without a token should stay well
// under it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
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
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	breaker *resilience.CircuitBreaker
}

// NewClient creates a GitHub API client. An empty token is valid; requests
// are then unauthenticated.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		retry:   resilience.DefaultPolicy(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		http: &http.Client{
			Timeout: 15 * time.Second,
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

func (c *httpClient) GetOrg(ctx context.Context, org string) (*Org, error) {
	body, err := c.get(ctx, "github.get_org", fmt.Sprintf("%s/orgs/%s", c.baseURL, org))
	if err != nil {
		return nil, err
	}

	var result Org
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "github: unmarshal org")
	}
	return &result, nil
}

func (c *httpClient) ListRepos(ctx context.Context, org string) ([]Repo, error) {
	reqURL := fmt.Sprintf("%s/orgs/%s/repos?sort=pushed&per_page=100&type=public", c.baseURL, org)
	body, err := c.get(ctx, "github.list_repos", reqURL)
	if err != nil {
		return nil, err
	}

	var repos []Repo
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, eris.Wrap(err, "github: unmarshal repos")
	}
	return repos, nil
}

func (c *httpClient) get(ctx context.Context, op, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "github: rate limit wait")
	}

	return resilience.Retry(ctx, c.retry, op, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, reqURL)
		})
	})
}

func (c *httpClient) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "github: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("github: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}
