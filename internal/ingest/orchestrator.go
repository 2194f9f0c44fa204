// Package ingest orchestrates ingestion runs across the configured source
// connectors: fetching, normalizing, deduplicating, and upserting workflow
// popularity records while tracking per-source outcomes.
package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satyamrathirar/popularity-vision/internal/keywords"
	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/normalize"
	"github.com/satyamrathirar/popularity-vision/internal/ratelimit"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/internal/source"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

// RunOptions parameterizes a single ingestion run.
type RunOptions struct {
	Mode            model.Mode
	DryRun          bool
	Deadline        time.Duration
	PagesPerKeyword int
}

// Orchestrator fans an ingestion run out across source connectors. Each
// connector runs in its own goroutine; a failure in one source never stops
// the others, except for store unavailability which aborts the whole run.
type Orchestrator struct {
	store      store.Store
	gate       *ratelimit.Gate
	connectors []source.Connector
	keywords   keywords.Source
	retry      resilience.RetryConfig
}

// New builds an orchestrator over the given connectors.
func New(st store.Store, gate *ratelimit.Gate, connectors []source.Connector, kw keywords.Source, retry resilience.RetryConfig) *Orchestrator {
	return &Orchestrator{
		store:      st,
		gate:       gate,
		connectors: connectors,
		keywords:   kw,
		retry:      retry,
	}
}

// Run executes one ingestion run and returns its report. The report is
// always non-nil when the run started, even when the run failed; the error
// is reserved for failures to start (keyword loading, run-log insert).
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     uuid.NewString(),
		Mode:      opts.Mode,
		DryRun:    opts.DryRun,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	kws, err := o.keywords.Load(opts.Mode)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		if err := o.store.StartRun(ctx, report); err != nil {
			return nil, err
		}
	}

	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	r := &runState{
		report:  report,
		opts:    opts,
		orch:    o,
		keys:    newKeyMutex(),
		failed:  make(map[string]bool),
		abort:   abort,
		rootCtx: ctx,
	}

	g, gctx := errgroup.WithContext(runCtx)
	for _, conn := range o.connectors {
		conn := conn
		g.Go(func() error {
			r.runSource(gctx, conn, kws)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	report.FinishedAt = time.Now().UTC()
	report.Status = r.finalStatus()

	if !opts.DryRun {
		// Use a fresh context so a blown run deadline does not also lose
		// the run-log entry.
		finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.store.FinishRun(finishCtx, report); err != nil {
			zap.L().Error("failed to record run completion",
				zap.String("run_id", report.RunID), zap.Error(err))
		}
	}

	zap.L().Info("ingestion run finished",
		zap.String("run_id", report.RunID),
		zap.String("mode", string(report.Mode)),
		zap.String("status", string(report.Status)),
		zap.Bool("dry_run", report.DryRun),
		zap.Int("records_upserted", report.RecordsUpserted),
		zap.Duration("duration", report.Duration()),
	)
	return report, nil
}

// runState is the mutable, mutex-guarded state shared by source workers.
type runState struct {
	mu      sync.Mutex
	report  *model.RunReport
	opts    RunOptions
	orch    *Orchestrator
	keys    *keyMutex
	failed  map[string]bool
	abort   context.CancelFunc
	rootCtx context.Context
}

func (r *runState) runSource(ctx context.Context, conn source.Connector, kws []string) {
	name := conn.Name()
	log := zap.L().With(zap.String("source", name))
	log.Info("source ingestion started", zap.Int("keywords", len(kws)))

	it := conn.Fetch(source.FetchParams{
		Keywords:        kws,
		Mode:            r.opts.Mode,
		PagesPerKeyword: r.opts.PagesPerKeyword,
	})

	retryCfg := r.orch.retry
	retryCfg.OnRetry = func(attempt int, err error) {
		r.addRetried(name)
		resilience.RetryLogger(name, "fetch")(attempt, err)
	}

	for {
		waited, err := r.orch.gate.Acquire(ctx, name)
		if err != nil {
			if r.rootCtx.Err() != nil {
				r.recordDeadline(name)
			}
			return
		}
		if waited {
			r.addRateLimited(name)
		}

		item, err := resilience.Do(ctx, retryCfg, func(ctx context.Context) (*source.RawItem, error) {
			return it.Next(ctx)
		})
		if errors.Is(err, io.EOF) {
			log.Info("source drained")
			return
		}
		r.addAttempted(name)
		if err != nil {
			if !r.handleFetchError(ctx, name, err, log) {
				return
			}
			continue
		}

		rec, err := normalize.Record(item, conn.Platform())
		if err != nil {
			r.addSkipped(name, item.Keyword, err)
			continue
		}

		if r.opts.DryRun {
			r.addSucceeded(name)
			continue
		}

		if err := r.upsert(ctx, rec); err != nil {
			if resilience.IsStoreUnavailable(err) {
				log.Error("store unavailable, aborting run", zap.Error(err))
				r.recordError(name, item.Keyword, model.ErrorKindStoreUnavailable, err)
				r.abort()
				return
			}
			r.addFailed(name, item.Keyword, err)
			continue
		}
		r.addSucceeded(name)
	}
}

// handleFetchError reports whether the source loop should continue.
func (r *runState) handleFetchError(ctx context.Context, name string, err error, log *zap.Logger) bool {
	switch {
	case resilience.IsQuotaExceeded(err):
		log.Warn("source quota exhausted", zap.Error(err))
		r.recordError(name, "", model.ErrorKindQuotaExceeded, err)
		r.markFailed(name)
		return false
	case resilience.IsPermanentItem(err):
		r.addSkipped(name, "", err)
		return true
	case ctx.Err() != nil:
		if r.rootCtx.Err() != nil {
			r.recordDeadline(name)
		}
		return false
	default:
		// Transient error that survived every retry. The iterator cannot
		// advance past it, so the rest of this source is unreachable.
		log.Error("source failed after retries", zap.Error(err))
		r.addFailed(name, "", err)
		r.markFailed(name)
		return false
	}
}

func (r *runState) upsert(ctx context.Context, rec model.WorkflowRecord) error {
	key := rec.Key().String()
	r.keys.Lock(key)
	defer r.keys.Unlock(key)

	if _, err := r.orch.store.UpsertWorkflow(ctx, rec); err != nil {
		return resilience.NewStoreUnavailable(err)
	}

	r.mu.Lock()
	r.report.RecordsUpserted++
	r.mu.Unlock()
	return nil
}

func (r *runState) finalStatus() model.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	clean := len(r.failed) == 0
	storeDown := false
	for _, e := range r.report.Errors {
		switch e.Kind {
		case model.ErrorKindPermanentItem:
			// Skipped items stay in the error list but never demote the
			// run: a skip is neither a failure nor an exhausted source.
		case model.ErrorKindStoreUnavailable:
			storeDown = true
			clean = false
		default:
			clean = false
		}
	}
	for _, s := range r.report.PerSource {
		if s.Failed > 0 {
			clean = false
		}
	}
	if clean {
		return model.RunStatusSuccess
	}

	// A run fails outright only when nothing was committed: either the
	// store went away before any upsert, or every source died first.
	if r.report.RecordsUpserted == 0 && !r.opts.DryRun {
		if storeDown {
			return model.RunStatusFailure
		}
		if len(r.failed) > 0 && len(r.failed) == len(r.orch.connectors) {
			return model.RunStatusFailure
		}
	}
	return model.RunStatusPartialFailure
}

// stat mutators

func (r *runState) addAttempted(src string) {
	r.mu.Lock()
	r.report.Stats(src).Attempted++
	r.mu.Unlock()
}

func (r *runState) addSucceeded(src string) {
	r.mu.Lock()
	r.report.Stats(src).Succeeded++
	r.mu.Unlock()
}

func (r *runState) addRetried(src string) {
	r.mu.Lock()
	r.report.Stats(src).Retried++
	r.mu.Unlock()
}

func (r *runState) addRateLimited(src string) {
	r.mu.Lock()
	r.report.Stats(src).RateLimited++
	r.mu.Unlock()
}

func (r *runState) addSkipped(src, keyword string, err error) {
	r.mu.Lock()
	r.report.Stats(src).Skipped++
	r.report.Errors = append(r.report.Errors, model.RunError{
		Source: src, Keyword: keyword, Kind: model.ErrorKindPermanentItem, Message: err.Error(),
	})
	r.mu.Unlock()
}

func (r *runState) addFailed(src, keyword string, err error) {
	r.mu.Lock()
	r.report.Stats(src).Failed++
	r.report.Errors = append(r.report.Errors, model.RunError{
		Source: src, Keyword: keyword, Kind: resilience.Kind(err), Message: err.Error(),
	})
	r.mu.Unlock()
}

func (r *runState) markFailed(src string) {
	r.mu.Lock()
	r.failed[src] = true
	r.mu.Unlock()
}

func (r *runState) recordError(src, keyword string, kind model.ErrorKind, err error) {
	r.mu.Lock()
	r.report.Errors = append(r.report.Errors, model.RunError{
		Source: src, Keyword: keyword, Kind: kind, Message: err.Error(),
	})
	r.mu.Unlock()
}

// recordDeadline logs a timeout entry for a source cut short by the run
// deadline. A deadline hit counts the source as failed only for status
// purposes when nothing was ingested.
func (r *runState) recordDeadline(src string) {
	err := r.rootCtx.Err()
	if err == nil {
		err = context.DeadlineExceeded
	}
	r.mu.Lock()
	r.report.Errors = append(r.report.Errors, model.RunError{
		Source: src, Kind: model.ErrorKindTimeout, Message: err.Error(),
	})
	r.mu.Unlock()
	zap.L().Warn("source stopped by run deadline", zap.String("source", src))
}
