package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "n8n slack" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		fmt.Fprint(w, `{
			"nextPageToken": "tok2",
			"items": [
				{"id": {"videoId": "abc"}},
				{"id": {"videoId": "def"}},
				{"id": {}}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	page, err := c.SearchPage(context.Background(), "n8n slack", "", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.VideoIDs) != 2 {
		t.Errorf("video ids = %v, want 2 entries", page.VideoIDs)
	}
	if page.NextPageToken != "tok2" {
		t.Errorf("next page token = %q", page.NextPageToken)
	}
}

func TestVideoStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("path = %s, want /videos", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "abc,def" {
			t.Errorf("id = %q", got)
		}
		fmt.Fprint(w, `{
			"items": [
				{
					"id": "abc",
					"snippet": {"title": "Slack Alert", "channelTitle": "Automation Hub"},
					"statistics": {"viewCount": "1200", "likeCount": "34", "commentCount": "5"}
				}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	videos, err := c.VideoStats(context.Background(), []string{"abc", "def"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(videos))
	}
	v := videos[0]
	if v.Title != "Slack Alert" || v.ViewCount != 1200 || v.LikeCount != 34 {
		t.Errorf("unexpected video: %+v", v)
	}
}

func TestVideoStatsEmptyIDs(t *testing.T) {
	c := NewClient("test-key")
	videos, err := c.VideoStats(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos != nil {
		t.Errorf("videos = %v, want nil", videos)
	}
}

func TestQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"message": "quota exceeded", "errors": [{"reason": "quotaExceeded"}]}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchPage(context.Background(), "n8n", "", 50)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.QuotaExhausted() {
		t.Errorf("QuotaExhausted() = false for reason %q", apiErr.Reason)
	}
	if apiErr.StatusCode != 403 {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchPage(context.Background(), "n8n", "", 50)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 503 {
		t.Errorf("status = %d, want 503", apiErr.StatusCode)
	}
	if apiErr.QuotaExhausted() {
		t.Error("plain 503 must not be quota")
	}
}
