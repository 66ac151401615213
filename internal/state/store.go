// Package state persists what the reference host has applied: one record
// per tracked resource plus a log of apply and destroy runs.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/db"
	"sqlite-provider/internal/domain"
	"sqlite-provider/internal/resource"
)

// Record is one tracked resource.
type Record struct {
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	ID         string          `json:"id"`
	Attributes attr.Map        `json:"attributes"`
	Status     resource.Status `json:"status"`
	RunID      string          `json:"run_id,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Key identifies the record as "kind/name".
func (r Record) Key() string { return r.Kind + "/" + r.Name }

// Run is one apply or destroy invocation.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
}

// Store is the SQLite-backed state store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the state file at path, creating and migrating it as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, domain.ErrIO(err, "open state %s", path)
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, domain.ErrIO(err, "migrate state %s", path)
	}
	return &Store{db: sqlDB, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const recordColumns = `kind, name, id, attributes, status, COALESCE(run_id, ''), updated_at`

// List returns every tracked record ordered by kind and name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM resources ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record for kind/name. ok is false when nothing is tracked.
func (s *Store) Get(ctx context.Context, kind, name string) (rec Record, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM resources WHERE kind = ? AND name = ?`, kind, name)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Put inserts or replaces the record for rec.Kind/rec.Name.
func (s *Store) Put(ctx context.Context, rec Record) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes of %s: %w", rec.Key(), err)
	}
	status, _ := rec.Status.MarshalText()
	var runID any
	if rec.RunID != "" {
		runID = rec.RunID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resources (kind, name, id, attributes, status, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, name) DO UPDATE SET
			id = excluded.id,
			attributes = excluded.attributes,
			status = excluded.status,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`,
		rec.Kind, rec.Name, rec.ID, string(attrs), string(status), runID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Key(), err)
	}
	return nil
}

// Remove drops the record for kind/name. Removing an untracked record is
// not an error.
func (s *Store) Remove(ctx context.Context, kind, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE kind = ? AND name = ?`, kind, name); err != nil {
		return fmt.Errorf("remove %s/%s: %w", kind, name, err)
	}
	return nil
}

// BeginRun records the start of command and returns the new run ID.
func (s *Store) BeginRun(ctx context.Context, command string) (string, error) {
	id := domain.NewID()
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (id, command, started_at) VALUES (?, ?, ?)`,
		id, command, formatTime(s.now()))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run with its outcome counts.
func (s *Store) FinishRun(ctx context.Context, id string, succeeded, failed int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, succeeded = ?, failed = ? WHERE id = ?`,
		formatTime(s.now()), succeeded, failed, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: run not found", id)
	}
	return nil
}

// LastRun returns the most recently started run, if any.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, command, started_at, finished_at, succeeded, failed
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`).
		Scan(&r.ID, &r.Command, &started, &finished, &r.Succeeded, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		r.FinishedAt = &t
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                    Record
		attrs, status, updated string
	)
	if err := row.Scan(&rec.Kind, &rec.Name, &rec.ID, &attrs, &status, &rec.RunID, &updated); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
		return Record{}, fmt.Errorf("decode attributes of %s: %w", rec.Key(), err)
	}
	if err := rec.Status.UnmarshalText([]byte(status)); err != nil {
		return Record{}, fmt.Errorf("decode status of %s: %w", rec.Key(), err)
	}
	t, err := parseTime(updated)
	if err != nil {
		return Record{}, err
	}
	rec.UpdatedAt = t
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
