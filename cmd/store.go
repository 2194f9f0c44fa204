package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/satyamrathirar/popularity-vision/internal/config"
	"github.com/satyamrathirar/popularity-vision/internal/ratelimit"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/internal/source"
	"github.com/satyamrathirar/popularity-vision/internal/store"
	"github.com/satyamrathirar/popularity-vision/pkg/discourse"
	"github.com/satyamrathirar/popularity-vision/pkg/gtrends"
	"github.com/satyamrathirar/popularity-vision/pkg/youtube"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "popvision.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initConnectors builds the enabled source connectors from config.
func initConnectors() []source.Connector {
	var connectors []source.Connector

	if cfg.Sources.YouTube.Enabled {
		client := youtube.NewClient(cfg.Sources.YouTube.APIKey,
			youtube.WithBaseURL(cfg.Sources.YouTube.BaseURL))
		connectors = append(connectors, source.NewYouTube(client))
	}
	if cfg.Sources.Discourse.Enabled {
		client := discourse.NewClient(cfg.Sources.Discourse.BaseURL)
		connectors = append(connectors, source.NewDiscourse(client))
	}
	if cfg.Sources.Trends.Enabled {
		client := gtrends.NewClient(cfg.Sources.Trends.APIKey,
			gtrends.WithBaseURL(cfg.Sources.Trends.BaseURL))
		connectors = append(connectors, source.NewTrends(client, cfg.Sources.Trends.Countries))
	}

	return connectors
}

// initGate builds the per-source rate limiter from config.
func initGate() *ratelimit.Gate {
	limits := map[string]ratelimit.Limit{
		"youtube":   {MaxRequests: cfg.Sources.YouTube.RateLimit.MaxRequests, Window: cfg.Sources.YouTube.RateLimit.Window()},
		"discourse": {MaxRequests: cfg.Sources.Discourse.RateLimit.MaxRequests, Window: cfg.Sources.Discourse.RateLimit.Window()},
		"trends":    {MaxRequests: cfg.Sources.Trends.RateLimit.MaxRequests, Window: cfg.Sources.Trends.RateLimit.Window()},
	}
	return ratelimit.NewGate(limits, ratelimit.Limit{})
}

func retryFromConfig(rc config.RetryConfig) resilience.RetryConfig {
	out := resilience.DefaultRetryConfig()
	if rc.MaxAttempts > 0 {
		out.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialBackoffMS > 0 {
		out.InitialBackoff = rc.InitialBackoff()
	}
	if rc.MaxBackoffSecs > 0 {
		out.MaxBackoff = rc.MaxBackoff()
	}
	return out
}
