package model

import (
	"fmt"
	"time"
)

// Mode selects the scope of an ingestion run.
type Mode string

const (
	// ModeFull ingests every configured keyword across all sources.
	ModeFull Mode = "full"
	// ModeTest ingests a reduced keyword subset with fewer pages, for validation.
	ModeTest Mode = "test"
	// ModeDeep ingests everything and triggers the post-run analysis pass.
	ModeDeep Mode = "deep"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeTest, ModeDeep:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want full, test, or deep)", s)
}

// RunStatus is the terminal outcome of an ingestion run.
type RunStatus string

const (
	RunStatusRunning        RunStatus = "running"
	RunStatusSuccess        RunStatus = "success"
	RunStatusPartialFailure RunStatus = "partial_failure"
	RunStatusFailure        RunStatus = "failure"
)

// ErrorKind categorizes ingestion errors for the run report.
type ErrorKind string

const (
	ErrorKindTransient        ErrorKind = "transient"
	ErrorKindQuotaExceeded    ErrorKind = "quota_exceeded"
	ErrorKindPermanentItem    ErrorKind = "permanent_item"
	ErrorKindStoreUnavailable ErrorKind = "store_unavailable"
	ErrorKindTimeout          ErrorKind = "timeout"
)

// SourceStats counts per-source outcomes within a single run.
type SourceStats struct {
	Attempted   int `json:"attempted"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Retried     int `json:"retried"`
	RateLimited int `json:"rate_limited"`
	Skipped     int `json:"skipped"`
}

// RunError is one captured ingestion error, in arrival order.
type RunError struct {
	Source  string    `json:"source"`
	Keyword string    `json:"keyword,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// RunReport summarizes one orchestrator invocation. It is owned by the
// orchestrator while the run is in flight and immutable after finalization.
type RunReport struct {
	RunID           string                  `json:"run_id"`
	Mode            Mode                    `json:"mode"`
	DryRun          bool                    `json:"dry_run,omitempty"`
	Status          RunStatus               `json:"status"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	PerSource       map[string]*SourceStats `json:"per_source"`
	Errors          []RunError              `json:"errors,omitempty"`
	RecordsUpserted int                     `json:"records_upserted"`
}

// Stats returns the stats bucket for a source, creating it if needed.
func (r *RunReport) Stats(source string) *SourceStats {
	if r.PerSource == nil {
		r.PerSource = make(map[string]*SourceStats)
	}
	s, ok := r.PerSource[source]
	if !ok {
		s = &SourceStats{}
		r.PerSource[source] = s
	}
	return s
}

// Duration returns the wall-clock duration of a finished run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
