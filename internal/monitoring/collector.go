// Package monitoring collects health metrics over the ingestion run log
// and evaluates them against alert thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

// MetricsSnapshot holds a point-in-time view of ingestion health.
type MetricsSnapshot struct {
	// Last run.
	LastRunID       string          `json:"last_run_id,omitempty"`
	LastRunStatus   model.RunStatus `json:"last_run_status,omitempty"`
	LastRunAt       time.Time       `json:"last_run_at,omitempty"`
	HoursSinceRun   float64         `json:"hours_since_run,omitempty"`
	LastRunUpserted int             `json:"last_run_upserted"`

	// Runs within the lookback window.
	RunsTotal   int     `json:"runs_total"`
	RunsSuccess int     `json:"runs_success"`
	RunsPartial int     `json:"runs_partial"`
	RunsFailed  int     `json:"runs_failed"`
	FailureRate float64 `json:"failure_rate"`

	// Store.
	StoreReachable  bool `json:"store_reachable"`
	TotalWorkflows  int  `json:"total_workflows"`
	RecentWorkflows int  `json:"recent_workflows"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store and run log.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window. A store that
// cannot be reached yields a snapshot with StoreReachable=false rather
// than an error, so the alerter can still fire.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	if err := c.store.Ping(ctx); err != nil {
		return snap, nil
	}
	snap.StoreReachable = true

	last, err := c.store.LastRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: last run")
	}
	if last != nil {
		snap.LastRunID = last.RunID
		snap.LastRunStatus = last.Status
		snap.LastRunAt = last.StartedAt
		snap.HoursSinceRun = now.Sub(last.StartedAt).Hours()
		snap.LastRunUpserted = last.RecordsUpserted
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, 1000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusSuccess:
			snap.RunsSuccess++
		case model.RunStatusPartialFailure:
			snap.RunsPartial++
		case model.RunStatusFailure:
			snap.RunsFailed++
		}
	}
	if finished := snap.RunsSuccess + snap.RunsPartial + snap.RunsFailed; finished > 0 {
		snap.FailureRate = float64(snap.RunsFailed) / float64(finished)
	}

	total, err := c.store.CountWorkflows(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count workflows")
	}
	snap.TotalWorkflows = total

	recent, err := c.store.CountWorkflowsUpdatedSince(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count recent workflows")
	}
	snap.RecentWorkflows = recent

	return snap, nil
}
