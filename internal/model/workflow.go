package model

import (
	"fmt"
	"time"
)

// Platform identifies the external source a record was ingested from.
type Platform string

const (
	PlatformYouTube      Platform = "YouTube"
	PlatformDiscourse    Platform = "Discourse"
	PlatformGoogleTrends Platform = "GoogleTrends"
)

// GlobalCountry is used when a source carries no geography.
const GlobalCountry = "GLOBAL"

// ParsePlatform validates a platform string.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformYouTube, PlatformDiscourse, PlatformGoogleTrends:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Metrics is an open mapping from metric name to value. Numeric values are
// always stored as float64; string values (e.g. trend direction) pass through.
type Metrics map[string]any

// WorkflowRecord is the canonical ingested unit. The triple
// (WorkflowName, Platform, Country) uniquely identifies a record; two
// records sharing the triple are the same entity and their metrics merge.
type WorkflowRecord struct {
	WorkflowName string    `json:"workflow_name"`
	Platform     Platform  `json:"platform"`
	Country      string    `json:"country"`
	Metrics      Metrics   `json:"popularity_metrics"`
	SourceURL    string    `json:"source_url,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// NaturalKey identifies a WorkflowRecord across all ingestion runs.
type NaturalKey struct {
	WorkflowName string
	Platform     Platform
	Country      string
}

// Key returns the record's natural key.
func (r WorkflowRecord) Key() NaturalKey {
	return NaturalKey{
		WorkflowName: r.WorkflowName,
		Platform:     r.Platform,
		Country:      r.Country,
	}
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.WorkflowName, k.Platform, k.Country)
}
