// Package gtrends provides a client for a search-trends/ads metrics API
// exposing interest-over-time and keyword-planner style data per market.
package gtrends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the trends operations used for ingestion.
type Client interface {
	// Interest returns aggregated search metrics for a keyword in one
	// market. An empty country requests worldwide data.
	Interest(ctx context.Context, keyword, country string) (*KeywordInterest, error)
}

// KeywordInterest holds the per-market metrics for one keyword.
type KeywordInterest struct {
	Keyword        string  `json:"keyword"`
	Country        string  `json:"country"`
	SearchVolume   float64 `json:"search_volume"`
	Competition    float64 `json:"competition"`
	CPC            float64 `json:"cpc"`
	TrendDirection string  `json:"trend_direction"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gtrends: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a trends API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://trends.googleapis.com/trends/api",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Interest(ctx context.Context, keyword, country string) (*KeywordInterest, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	if country != "" {
		q.Set("geo", country)
	}
	reqURL := c.baseURL + "/interest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "gtrends: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "gtrends: GET interest for %q", keyword)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil {
			apiErr.Message = body.Message
		}
		return nil, apiErr
	}

	var ki KeywordInterest
	if err := json.NewDecoder(resp.Body).Decode(&ki); err != nil {
		return nil, eris.Wrap(err, "gtrends: decode interest response")
	}
	ki.Keyword = keyword
	if ki.Country == "" {
		ki.Country = country
	}
	return &ki, nil
}
