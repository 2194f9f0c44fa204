package gtrends

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInterest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interest" {
			t.Errorf("path = %s, want /interest", r.URL.Path)
		}
		if got := r.URL.Query().Get("keyword"); got != "n8n" {
			t.Errorf("keyword = %q", got)
		}
		if got := r.URL.Query().Get("geo"); got != "US" {
			t.Errorf("geo = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		fmt.Fprint(w, `{
			"country": "US",
			"search_volume": 1000,
			"competition": 0.4,
			"cpc": 1.25,
			"trend_direction": "rising"
		}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	ki, err := c.Interest(context.Background(), "n8n", "US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ki.Keyword != "n8n" || ki.Country != "US" {
		t.Errorf("identity fields: %+v", ki)
	}
	if ki.SearchVolume != 1000 || ki.CPC != 1.25 || ki.TrendDirection != "rising" {
		t.Errorf("metric fields: %+v", ki)
	}
}

func TestInterestWorldwide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("geo") {
			t.Error("worldwide request must not send geo")
		}
		fmt.Fprint(w, `{"search_volume": 5000}`)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	ki, err := c.Interest(context.Background(), "n8n", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ki.Country != "" {
		t.Errorf("country = %q, want empty", ki.Country)
	}
}

func TestInterestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "quota exhausted"}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Interest(context.Background(), "n8n", "US")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 403 || apiErr.Message != "quota exhausted" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}
