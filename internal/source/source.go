// Package source defines the pluggable connector contract for external
// popularity data sources and the three built-in connectors.
package source

import (
	"context"
	"io"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

// RawItem is one platform-specific record yielded by a connector. The
// normalizer turns it into a canonical WorkflowRecord.
type RawItem struct {
	Keyword   string
	Name      string
	Country   string // empty when the source has no geography
	SourceURL string
	Fields    map[string]any
}

// FetchParams selects what a connector should fetch.
type FetchParams struct {
	Keywords        []string
	Mode            model.Mode
	PagesPerKeyword int
}

// Iterator yields raw items lazily. Next returns io.EOF when the sequence
// is exhausted. Errors from Next are classified via internal/resilience:
// transient errors may be retried by the caller, quota errors end the
// source for the run, and permanent-item errors skip one item.
type Iterator interface {
	Next(ctx context.Context) (*RawItem, error)
}

// Connector fetches raw popularity records from one external source.
// Connectors do not dedupe internally and are restartable per keyword.
type Connector interface {
	// Name is the connector's stable identifier used for configuration,
	// rate limits, and run reports.
	Name() string
	// Platform tags the records this connector produces.
	Platform() model.Platform
	// Fetch starts a lazy fetch; no I/O happens until the first Next call.
	Fetch(params FetchParams) Iterator
}

// done is an exhausted iterator.
type done struct{}

func (done) Next(context.Context) (*RawItem, error) { return nil, io.EOF }
