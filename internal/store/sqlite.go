package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS workflows (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_name      TEXT NOT NULL,
	platform           TEXT NOT NULL,
	country            TEXT NOT NULL,
	popularity_metrics TEXT NOT NULL,
	source_url         TEXT,
	last_updated       DATETIME NOT NULL,
	UNIQUE (workflow_name, platform, country)
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id               TEXT PRIMARY KEY,
	mode             TEXT NOT NULL,
	dry_run          INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	started_at       DATETIME NOT NULL,
	finished_at      DATETIME,
	records_upserted INTEGER NOT NULL DEFAULT 0,
	per_source       TEXT,
	errors           TEXT
);

CREATE INDEX IF NOT EXISTS idx_workflows_platform ON workflows(platform);
CREATE INDEX IF NOT EXISTS idx_workflows_country ON workflows(country);
CREATE INDEX IF NOT EXISTS idx_workflows_last_updated ON workflows(last_updated);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertWorkflow merges rec into the stored row sharing its natural key,
// inserting when none exists. The read-merge-write happens inside one
// transaction; SQLite's single-writer discipline serializes concurrent
// upserts for the same key.
func (s *SQLiteStore) UpsertWorkflow(ctx context.Context, rec model.WorkflowRecord) (*model.WorkflowRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := scanWorkflow(tx.QueryRowContext(ctx,
		`SELECT workflow_name, platform, country, popularity_metrics, source_url, last_updated
		 FROM workflows WHERE workflow_name = ? AND platform = ? AND country = ?`,
		rec.WorkflowName, string(rec.Platform), rec.Country,
	))
	if err != nil {
		return nil, err
	}

	merged := model.Merge(existing, rec, time.Now().UTC())

	metricsJSON, err := json.Marshal(merged.Metrics)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (workflow_name, platform, country, popularity_metrics, source_url, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workflow_name, platform, country) DO UPDATE SET
			popularity_metrics = excluded.popularity_metrics,
			source_url         = excluded.source_url,
			last_updated       = excluded.last_updated`,
		merged.WorkflowName, string(merged.Platform), merged.Country,
		string(metricsJSON), nullIfEmpty(merged.SourceURL), merged.LastUpdated,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert workflow %s", merged.Key())
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}
	return &merged, nil
}

func (s *SQLiteStore) GetWorkflow(ctx context.Context, name string, platform model.Platform, country string) (*model.WorkflowRecord, error) {
	return scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT workflow_name, platform, country, popularity_metrics, source_url, last_updated
		 FROM workflows WHERE workflow_name = ? AND platform = ? AND country = ?`,
		name, string(platform), country,
	))
}

func (s *SQLiteStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]model.WorkflowRecord, error) {
	query := `SELECT workflow_name, platform, country, popularity_metrics, source_url, last_updated
		 FROM workflows WHERE 1=1`
	var args []any

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, string(filter.Platform))
	}
	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, filter.Country)
	}
	query += ` ORDER BY workflow_name, platform, country`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list workflows")
	}
	defer rows.Close()

	var records []model.WorkflowRecord
	for rows.Next() {
		rec, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list workflows iterate")
}

func (s *SQLiteStore) CountWorkflows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count workflows")
}

func (s *SQLiteStore) CountWorkflowsUpdatedSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflows WHERE last_updated >= ?`, cutoff,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count recent workflows")
}

func (s *SQLiteStore) StartRun(ctx context.Context, report *model.RunReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, mode, dry_run, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		report.RunID, string(report.Mode), report.DryRun, string(model.RunStatusRunning), report.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: start run %s", report.RunID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, report *model.RunReport) error {
	perSourceJSON, errorsJSON, err := marshalRunDetails(report)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_runs
		 SET status = ?, finished_at = ?, records_upserted = ?, per_source = ?, errors = ?
		 WHERE id = ?`,
		string(report.Status), report.FinishedAt, report.RecordsUpserted,
		perSourceJSON, errorsJSON, report.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", report.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", report.RunID)
	}
	return nil
}

func (s *SQLiteStore) LastRun(ctx context.Context) (*model.RunReport, error) {
	reports, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, dry_run, status, started_at, finished_at, records_upserted, per_source, errors
		 FROM ingestion_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var reports []model.RunReport
	for rows.Next() {
		var r model.RunReport
		var finishedAt sql.NullTime
		var perSourceJSON, errorsJSON sql.NullString
		if err := rows.Scan(&r.RunID, &r.Mode, &r.DryRun, &r.Status, &r.StartedAt,
			&finishedAt, &r.RecordsUpserted, &perSourceJSON, &errorsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finishedAt.Valid {
			r.FinishedAt = finishedAt.Time
		}
		if err := unmarshalRunDetails(&r, perSourceJSON.String, errorsJSON.String); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scannable) (*model.WorkflowRecord, error) {
	var rec model.WorkflowRecord
	var platform string
	var metricsJSON string
	var sourceURL sql.NullString

	err := row.Scan(&rec.WorkflowName, &platform, &rec.Country, &metricsJSON, &sourceURL, &rec.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan workflow")
	}

	rec.Platform = model.Platform(platform)
	rec.SourceURL = sourceURL.String
	if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
	}
	return &rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalRunDetails(report *model.RunReport) (perSource, errs string, err error) {
	perSourceJSON, err := json.Marshal(report.PerSource)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal per-source stats")
	}
	errorsJSON, err := json.Marshal(report.Errors)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal run errors")
	}
	return string(perSourceJSON), string(errorsJSON), nil
}

func unmarshalRunDetails(r *model.RunReport, perSourceJSON, errorsJSON string) error {
	if perSourceJSON != "" {
		if err := json.Unmarshal([]byte(perSourceJSON), &r.PerSource); err != nil {
			return eris.Wrap(err, "store: unmarshal per-source stats")
		}
	}
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &r.Errors); err != nil {
			return eris.Wrap(err, "store: unmarshal run errors")
		}
	}
	return nil
}
