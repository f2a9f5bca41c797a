package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/detect"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5

	// tsLayout is fixed width so stored timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  ts_utc      TEXT NOT NULL,
  manifest    TEXT NOT NULL,
  platforms   TEXT NOT NULL,
  classes     INTEGER NOT NULL,
  errors      INTEGER NOT NULL,
  warnings    INTEGER NOT NULL,
  generatable INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_ts ON runs (ts_utc);
CREATE TABLE IF NOT EXISTS conflicts (
  run_id      TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
  seq         INTEGER NOT NULL,
  severity    TEXT NOT NULL,
  code        TEXT NOT NULL,
  subject     TEXT NOT NULL,
  platforms   TEXT NOT NULL,
  description TEXT NOT NULL,
  PRIMARY KEY (run_id, seq)
);
`

// Run is one recorded link pass.
type Run struct {
	Time        time.Time
	ID          string
	Manifest    string
	Platforms   []xplat.Platform
	Classes     int
	Errors      int
	Warnings    int
	Generatable bool
}

// Diff lists conflicts that appeared or disappeared between two runs.
type Diff struct {
	Added    []detect.Conflict
	Resolved []detect.Conflict
}

// Store keeps link run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates a history database.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("report: store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("report: store path %q is a directory, expected file", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("report: create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("report: open store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("report: ping store %q: %w", cleanPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("report: initialize schema %q: %w", cleanPath, err)
	}
	return &Store{db: db, path: cleanPath}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save records a report and returns the new run.
func (s *Store) Save(ctx context.Context, r Report) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:          uuid.New().String(),
		Time:        r.Generated.UTC(),
		Manifest:    r.Manifest,
		Platforms:   r.Platforms,
		Classes:     r.Classes,
		Errors:      r.Errors,
		Warnings:    r.Warnings,
		Generatable: r.Generatable,
	}
	if run.Time.IsZero() {
		run.Time = time.Now().UTC()
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, ts_utc, manifest, platforms, classes, errors, warnings, generatable)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Time.Format(tsLayout),
			run.Manifest,
			joinPlatforms(run.Platforms),
			run.Classes,
			run.Errors,
			run.Warnings,
			run.Generatable,
		); err != nil {
			return err
		}
		for i, c := range r.Conflicts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conflicts (run_id, seq, severity, code, subject, platforms, description)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, i, c.Severity.String(), string(c.Code), c.Subject, joinPlatforms(c.Platforms), c.Description,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return Run{}, fmt.Errorf("report: %w", err)
	}
	return run, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, ts_utc, manifest, platforms, classes, errors, warnings, generatable
FROM runs ORDER BY ts_utc DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: load runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run          Run
			tsRaw        string
			platformsRaw string
		)
		if err := rows.Scan(&run.ID, &tsRaw, &run.Manifest, &platformsRaw,
			&run.Classes, &run.Errors, &run.Warnings, &run.Generatable); err != nil {
			return nil, fmt.Errorf("report: scan run row: %w", err)
		}
		ts, err := time.Parse(tsLayout, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("report: parse run timestamp %q: %w", tsRaw, err)
		}
		run.Time = ts.UTC()
		run.Platforms = splitPlatforms(platformsRaw)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate run rows: %w", err)
	}
	return runs, nil
}

// Conflicts returns the conflicts recorded for a run in report order.
func (s *Store) Conflicts(ctx context.Context, runID string) ([]detect.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return nil, fmt.Errorf("report: load run %s: %w", runID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("report: unknown run %q", runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, code, subject, platforms, description FROM conflicts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("report: load conflicts: %w", err)
	}
	defer rows.Close()

	out := make([]detect.Conflict, 0)
	for rows.Next() {
		var (
			c            detect.Conflict
			sevRaw       string
			code         string
			platformsRaw string
		)
		if err := rows.Scan(&sevRaw, &code, &c.Subject, &platformsRaw, &c.Description); err != nil {
			return nil, fmt.Errorf("report: scan conflict row: %w", err)
		}
		if err := c.Severity.UnmarshalText([]byte(sevRaw)); err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		c.Code = detect.Code(code)
		c.Platforms = splitPlatforms(platformsRaw)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate conflict rows: %w", err)
	}
	return out, nil
}

// Diff compares the conflicts of two runs.
func (s *Store) Diff(ctx context.Context, fromID, toID string) (Diff, error) {
	from, err := s.Conflicts(ctx, fromID)
	if err != nil {
		return Diff{}, err
	}
	to, err := s.Conflicts(ctx, toID)
	if err != nil {
		return Diff{}, err
	}
	return DiffConflicts(from, to), nil
}

// DiffConflicts compares two conflict lists by identity, ignoring order.
func DiffConflicts(from, to []detect.Conflict) Diff {
	key := func(c detect.Conflict) string {
		return strings.Join([]string{c.Severity.String(), string(c.Code), c.Subject, joinPlatforms(c.Platforms), c.Description}, "\x00")
	}
	before := make(map[string]int, len(from))
	for _, c := range from {
		before[key(c)]++
	}
	after := make(map[string]int, len(to))
	for _, c := range to {
		after[key(c)]++
	}

	var d Diff
	for _, c := range to {
		k := key(c)
		if before[k] > 0 {
			before[k]--
			continue
		}
		d.Added = append(d.Added, c)
	}
	for _, c := range from {
		k := key(c)
		if after[k] > 0 {
			after[k]--
			continue
		}
		d.Resolved = append(d.Resolved, c)
	}
	return d
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func joinPlatforms(ps []xplat.Platform) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func splitPlatforms(s string) []xplat.Platform {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]xplat.Platform, len(parts))
	for i, p := range parts {
		out[i] = xplat.Platform(p)
	}
	return out
}
