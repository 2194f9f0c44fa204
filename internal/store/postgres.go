package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

// PgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps the Postgres store testable without a live database.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres connects to Postgres using the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS workflows (
	id                 BIGSERIAL PRIMARY KEY,
	workflow_name      TEXT NOT NULL,
	platform           TEXT NOT NULL,
	country            TEXT NOT NULL,
	popularity_metrics JSONB NOT NULL,
	source_url         TEXT,
	last_updated       TIMESTAMPTZ NOT NULL,
	UNIQUE (workflow_name, platform, country)
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id               TEXT PRIMARY KEY,
	mode             TEXT NOT NULL,
	dry_run          BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ,
	records_upserted INTEGER NOT NULL DEFAULT 0,
	per_source       JSONB,
	errors           JSONB
);

CREATE INDEX IF NOT EXISTS idx_workflows_platform ON workflows(platform);
CREATE INDEX IF NOT EXISTS idx_workflows_country ON workflows(country);
CREATE INDEX IF NOT EXISTS idx_workflows_last_updated ON workflows(last_updated);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertWorkflow locks the existing row for the natural key, merges the
// incoming record into it, and writes the result back. FOR UPDATE
// serializes concurrent upserts for the same key across pool connections.
func (s *PostgresStore) UpsertWorkflow(ctx context.Context, rec model.WorkflowRecord) (*model.WorkflowRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := scanPgWorkflow(tx.QueryRow(ctx,
		`SELECT workflow_name, platform, country, popularity_metrics, source_url, last_updated
		 FROM workflows WHERE workflow_name = $1 AND platform = $2 AND country = $3
		 FOR UPDATE`,
		rec.WorkflowName, string(rec.Platform), rec.Country,
	))
	if err != nil {
		return nil, err
	}

	merged := model.Merge(existing, rec, time.Now().UTC())

	metricsJSON, err := json.Marshal(merged.Metrics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO workflows (workflow_name, platform, country, popularity_metrics, source_url, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (workflow_name, platform, country) DO UPDATE SET
			popularity_metrics = EXCLUDED.popularity_metrics,
			source_url         = EXCLUDED.source_url,
			last_updated       = EXCLUDED.last_updated`,
		merged.WorkflowName, string(merged.Platform), merged.Country,
		metricsJSON, nullIfEmpty(merged.SourceURL), merged.LastUpdated,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert workflow %s", merged.Key())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit upsert")
	}
	return &merged, nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, name string, platform model.Platform, country string) (*model.WorkflowRecord, error) {
	return scanPgWorkflow(s.pool.QueryRow(ctx,
		`SELECT workflow_name, platform, country, popularity_metrics, source_url, last_updated
		 FROM workflows WHERE workflow_name = $1 AND platform = $2 AND country = $3`,
		name, string(platform), country,
	))
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]model.WorkflowRecord, error) {
	query := `SELECT workflow_name, platform, country, popularity_metrics, source_url, last_updated
		 FROM workflows WHERE ($1 = '' OR platform = $1) AND ($2 = '' OR country = $2)
		 ORDER BY workflow_name, platform, country
		 LIMIT $3 OFFSET $4`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, query, string(filter.Platform), filter.Country, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list workflows")
	}
	defer rows.Close()

	var records []model.WorkflowRecord
	for rows.Next() {
		rec, err := scanPgWorkflow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list workflows iterate")
}

func (s *PostgresStore) CountWorkflows(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count workflows")
}

func (s *PostgresStore) CountWorkflowsUpdatedSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workflows WHERE last_updated >= $1`, cutoff,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count recent workflows")
}

func (s *PostgresStore) StartRun(ctx context.Context, report *model.RunReport) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingestion_runs (id, mode, dry_run, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		report.RunID, string(report.Mode), report.DryRun, string(model.RunStatusRunning), report.StartedAt,
	)
	return eris.Wrapf(err, "postgres: start run %s", report.RunID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, report *model.RunReport) error {
	perSourceJSON, errorsJSON, err := marshalRunDetails(report)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_runs
		 SET status = $1, finished_at = $2, records_upserted = $3, per_source = $4, errors = $5
		 WHERE id = $6`,
		string(report.Status), report.FinishedAt, report.RecordsUpserted,
		perSourceJSON, errorsJSON, report.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", report.RunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", report.RunID)
	}
	return nil
}

func (s *PostgresStore) LastRun(ctx context.Context) (*model.RunReport, error) {
	reports, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, dry_run, status, started_at, finished_at, records_upserted, per_source, errors
		 FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var reports []model.RunReport
	for rows.Next() {
		var r model.RunReport
		var finishedAt *time.Time
		var perSourceJSON, errorsJSON []byte
		if err := rows.Scan(&r.RunID, &r.Mode, &r.DryRun, &r.Status, &r.StartedAt,
			&finishedAt, &r.RecordsUpserted, &perSourceJSON, &errorsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if finishedAt != nil {
			r.FinishedAt = *finishedAt
		}
		if err := unmarshalRunDetails(&r, string(perSourceJSON), string(errorsJSON)); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgWorkflow(row pgx.Row) (*model.WorkflowRecord, error) {
	var rec model.WorkflowRecord
	var platform string
	var metricsJSON []byte
	var sourceURL *string

	err := row.Scan(&rec.WorkflowName, &platform, &rec.Country, &metricsJSON, &sourceURL, &rec.LastUpdated)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan workflow")
	}

	rec.Platform = model.Platform(platform)
	if sourceURL != nil {
		rec.SourceURL = *sourceURL
	}
	if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	return &rec, nil
}
