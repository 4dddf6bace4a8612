package corrective

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default search settings.
const (
	DefaultCategories        = "science"
	DefaultEngines           = "google,bing,duckduckgo"
	DefaultLimit             = 5
	DefaultSearchTimeout     = 10 * time.Second
	DefaultRequestsPerSecond = 1.0
)

// Result is one SearXNG hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// ClientConfig holds the SearXNG connection settings.
type ClientConfig struct {
	BaseURL    string
	Categories string
	Engines    string
	// Limit caps the results returned by Search.
	Limit   int
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing searches. Zero disables it.
	RequestsPerSecond float64
}

// DefaultClientConfig returns the standard settings for baseURL.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Categories:        DefaultCategories,
		Engines:           DefaultEngines,
		Limit:             DefaultLimit,
		Timeout:           DefaultSearchTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// Client queries the SearXNG JSON API.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client. Zero fields of cfg take their defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, ErrSearchURLRequired
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("searxng base url: %w", err)
	}
	if cfg.Categories == "" {
		cfg.Categories = DefaultCategories
	}
	if cfg.Engines == "" {
		cfg.Engines = DefaultEngines
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With("component", "searxng"),
	}, nil
}

// Search returns at most Limit results for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", c.cfg.Categories)
	params.Set("engines", c.cfg.Engines)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrSearchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
		if err != nil {
			return nil, fmt.Errorf("%w: status %d", ErrSearchFailed, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrSearchFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrSearchFailed, err)
	}
	results := decoded.Results
	if len(results) > c.cfg.Limit {
		results = results[:c.cfg.Limit]
	}
	c.logger.Debug("web search", "results", len(results))
	return results, nil
}
