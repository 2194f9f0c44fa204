// Package store persists workflow records and ingestion run reports.
package store

import (
	"context"
	"time"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

// WorkflowFilter specifies criteria for listing workflow records.
type WorkflowFilter struct {
	Platform model.Platform `json:"platform,omitempty"`
	Country  string         `json:"country,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
// UpsertWorkflow is transactional per natural key: concurrent upserts for
// the same (workflow_name, platform, country) serialize inside the store
// and merge rather than duplicate.
type Store interface {
	// Workflows
	UpsertWorkflow(ctx context.Context, rec model.WorkflowRecord) (*model.WorkflowRecord, error)
	GetWorkflow(ctx context.Context, name string, platform model.Platform, country string) (*model.WorkflowRecord, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]model.WorkflowRecord, error)
	CountWorkflows(ctx context.Context) (int, error)
	CountWorkflowsUpdatedSince(ctx context.Context, cutoff time.Time) (int, error)

	// Run log
	StartRun(ctx context.Context, report *model.RunReport) error
	FinishRun(ctx context.Context, report *model.RunReport) error
	LastRun(ctx context.Context) (*model.RunReport, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
