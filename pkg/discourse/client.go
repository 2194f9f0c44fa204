// Package discourse provides a client for a Discourse forum's public
// search and topic JSON endpoints.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the forum operations used for ingestion.
type Client interface {
	// Search returns one page of topic search results. Pages start at 1.
	Search(ctx context.Context, query string, page int) ([]Topic, error)
	// Topic fetches the full detail of one topic.
	Topic(ctx context.Context, id int64) (*TopicDetail, error)
	// TopicURL returns the canonical public URL of a topic.
	TopicURL(slug string, id int64) string
}

// Topic is a search hit.
type Topic struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// TopicDetail holds the engagement fields of a topic.
type TopicDetail struct {
	ID                int64
	Title             string
	Slug              string
	Views             int64
	ReplyCount        int64
	LikeCount         int64
	HasAcceptedAnswer bool
}

// APIError is a non-2xx response from the forum.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discourse: status %d", e.StatusCode)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a forum client for the given Discourse base URL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
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

func (c *httpClient) Search(ctx context.Context, query string, page int) ([]Topic, error) {
	if page < 1 {
		page = 1
	}
	reqURL := fmt.Sprintf("%s/search.json?q=%s&page=%d", c.baseURL, url.QueryEscape(query), page)

	var resp struct {
		Topics []Topic `json:"topics"`
	}
	if err := c.get(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	return resp.Topics, nil
}

func (c *httpClient) Topic(ctx context.Context, id int64) (*TopicDetail, error) {
	reqURL := fmt.Sprintf("%s/t/%d.json", c.baseURL, id)

	var resp struct {
		ID                int64  `json:"id"`
		Title             string `json:"title"`
		Slug              string `json:"slug"`
		Views             int64  `json:"views"`
		ReplyCount        int64  `json:"reply_count"`
		LikeCount         int64  `json:"like_count"`
		HasAcceptedAnswer bool   `json:"has_accepted_answer"`
	}
	if err := c.get(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	return &TopicDetail{
		ID:                resp.ID,
		Title:             resp.Title,
		Slug:              resp.Slug,
		Views:             resp.Views,
		ReplyCount:        resp.ReplyCount,
		LikeCount:         resp.LikeCount,
		HasAcceptedAnswer: resp.HasAcceptedAnswer,
	}, nil
}

func (c *httpClient) TopicURL(slug string, id int64) string {
	return fmt.Sprintf("%s/t/%s/%d", c.baseURL, slug, id)
}

func (c *httpClient) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "discourse: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "discourse: GET %s", reqURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "discourse: decode response")
	}
	return nil
}
