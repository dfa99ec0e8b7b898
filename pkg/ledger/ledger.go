// Package ledger keeps an SQLite record of crawl runs and of the outcome of
// every (target, kind) fetch. Seed generators read it to find targets whose
// data is stale.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"twaler/pkg/logger"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Status of one fetch
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Run is one crawl over one seed file
type Run struct {
	ID         string
	SeedFile   string
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome is the result of driving one (target, kind) to completion or abort
type Outcome struct {
	RunID      string
	TargetID   string
	Kind       string
	ListName   string
	Pages      int
	Bytes      int64
	Status     Status
	Error      string
	FinishedAt time.Time
}

// Ledger is safe for use by every worker; writes are serialized by the
// single underlying connection.
type Ledger struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens or creates the ledger at path and applies migrations
func Open(path string, log logger.Logger) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Ledger{db: db, logger: log.WithField("component", "ledger")}, nil
}

// Close releases the database
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Begin records the start of a run
func (l *Ledger) Begin(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, seed_file, workers, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.SeedFile, run.Workers, run.StartedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	l.logger.DebugWithFields("run recorded", map[string]interface{}{
		"run_id":    run.ID,
		"seed_file": run.SeedFile,
	})
	return nil
}

// Finish stamps the end of a run
func (l *Ledger) Finish(ctx context.Context, runID string, at time.Time) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		at.UTC().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// Record appends one fetch outcome
func (l *Ledger) Record(ctx context.Context, o Outcome) error {
	if o.RunID == "" || o.TargetID == "" || o.Kind == "" {
		return fmt.Errorf("outcome needs run id, target id and kind")
	}
	if o.Status == "" {
		o.Status = StatusOK
	}
	if o.FinishedAt.IsZero() {
		o.FinishedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO fetches (run_id, target_id, kind, list_name, pages, bytes, status, error, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		o.RunID, o.TargetID, o.Kind, o.ListName, o.Pages, o.Bytes, string(o.Status), o.Error,
		o.FinishedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Outcomes lists the fetches of one run in insertion order
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT run_id, target_id, kind, list_name, pages, bytes, status, error, finished_at
FROM fetches
WHERE run_id = ?
ORDER BY id
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var status string
		var finished int64
		if err := rows.Scan(&o.RunID, &o.TargetID, &o.Kind, &o.ListName, &o.Pages, &o.Bytes, &status, &o.Error, &finished); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = Status(status)
		o.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// Updated returns, per kind, when targetID was last fetched successfully
func (l *Ledger) Updated(ctx context.Context, targetID string) (map[string]time.Time, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT kind, MAX(finished_at)
FROM fetches
WHERE target_id = ? AND status = ?
GROUP BY kind
`, targetID, string(StatusOK))
	if err != nil {
		return nil, fmt.Errorf("query updated: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var kind string
		var at int64
		if err := rows.Scan(&kind, &at); err != nil {
			return nil, fmt.Errorf("scan updated: %w", err)
		}
		out[kind] = time.UnixMilli(at).UTC()
	}
	return out, rows.Err()
}

// Runs lists every run, newest first
func (l *Ledger) Runs(ctx context.Context) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT run_id, seed_file, workers, started_at, finished_at
FROM runs
ORDER BY started_at DESC, run_id
`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.SeedFile, &r.Workers, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// migrate applies each embedded migration at most once
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mark migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}
