// Package youtube provides a minimal client for the YouTube Data API v3
// search and videos endpoints.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the YouTube Data API operations used for ingestion.
type Client interface {
	// SearchPage returns one page of video search results for a query.
	// Pass an empty pageToken for the first page.
	SearchPage(ctx context.Context, query, pageToken string, maxResults int) (*SearchPage, error)
	// VideoStats returns statistics for up to 50 video IDs.
	VideoStats(ctx context.Context, ids []string) ([]Video, error)
}

// SearchPage is one page of search results.
type SearchPage struct {
	VideoIDs      []string
	NextPageToken string
}

// Video holds the fields of a videos.list item used for ingestion.
type Video struct {
	ID           string
	Title        string
	ChannelTitle string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// APIError is a non-2xx response from the API. Reason carries the API's
// error reason code (e.g. "quotaExceeded") when one is present.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube: status %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube: status %d: %s", e.StatusCode, e.Message)
}

// QuotaExhausted reports whether the API rejected the call for quota reasons.
func (e *APIError) QuotaExhausted() bool {
	switch e.Reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
		return true
	}
	return false
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

// NewClient creates a YouTube Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://www.googleapis.com/youtube/v3",
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

func (c *httpClient) SearchPage(ctx context.Context, query, pageToken string, maxResults int) (*SearchPage, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 50
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("q", query)
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))
	q.Set("key", c.apiKey)
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var resp struct {
		NextPageToken string `json:"nextPageToken"`
		Items         []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/search", q, &resp); err != nil {
		return nil, err
	}

	page := &SearchPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.ID.VideoID != "" {
			page.VideoIDs = append(page.VideoIDs, item.ID.VideoID)
		}
	}
	return page, nil
}

func (c *httpClient) VideoStats(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics")
	q.Set("id", strings.Join(ids, ","))
	q.Set("key", c.apiKey)

	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
			Statistics struct {
				ViewCount    json.Number `json:"viewCount"`
				LikeCount    json.Number `json:"likeCount"`
				CommentCount json.Number `json:"commentCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/videos", q, &resp); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		views, _ := item.Statistics.ViewCount.Int64()
		likes, _ := item.Statistics.LikeCount.Int64()
		comments, _ := item.Statistics.CommentCount.Int64()
		videos = append(videos, Video{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			ViewCount:    views,
			LikeCount:    likes,
			CommentCount: comments,
		})
	}
	return videos, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "youtube: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "youtube: GET %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error struct {
				Message string `json:"message"`
				Errors  []struct {
					Reason string `json:"reason"`
				} `json:"errors"`
			} `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil {
			apiErr.Message = body.Error.Message
			if len(body.Error.Errors) > 0 {
				apiErr.Reason = body.Error.Errors[0].Reason
			}
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "youtube: decode %s response", path)
	}
	return nil
}
