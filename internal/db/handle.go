package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"sqlite-provider/internal/domain"
)

// RowSet is the materialized result of a statement.
type RowSet struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
}

// Handle owns the single connection to the managed database file.
// Every statement runs while holding mu, so at most one execution is in
// flight at a time. Waiters are not served in FIFO order.
type Handle struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the database file at path. Failures are reported
// as *domain.IOError.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sqlDB, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, domain.ErrIO(err, "open database %s", path)
	}
	logger.Debug("database handle opened", "path", path)
	return &Handle{path: path, logger: logger, db: sqlDB}, nil
}

// Path returns the backing file path.
func (h *Handle) Path() string { return h.path }

// Execute runs a statement that returns no rows under the exclusive lock.
// Engine failures are reported as *domain.EngineError.
func (h *Handle) Execute(ctx context.Context, stmt string, args ...any) (*RowSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, domain.ErrIO(nil, "database handle %s is closed", h.path)
	}

	start := time.Now()
	res, err := h.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		h.logger.Debug("statement failed", "stmt", stmt, "duration", time.Since(start), "error", err)
		return nil, domain.ErrEngine(stmt, err)
	}
	h.logger.Debug("statement executed", "stmt", stmt, "duration", time.Since(start))

	rs := &RowSet{}
	// The sqlite3 driver always supports both; errors here are not fatal.
	rs.RowsAffected, _ = res.RowsAffected()
	rs.LastInsertID, _ = res.LastInsertId()
	return rs, nil
}

// Query runs a row-returning statement under the exclusive lock and
// materializes the result before releasing it.
func (h *Handle) Query(ctx context.Context, stmt string, args ...any) (*RowSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, domain.ErrIO(nil, "database handle %s is closed", h.path)
	}

	rows, err := h.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, domain.ErrEngine(stmt, err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, domain.ErrEngine(stmt, err)
	}

	rs := &RowSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.ErrEngine(stmt, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrEngine(stmt, err)
	}
	return rs, nil
}

// Close releases the file. It waits for any in-flight statement and is
// safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.db.Close(); err != nil {
		return domain.ErrIO(err, "close database %s", h.path)
	}
	h.logger.Debug("database handle closed", "path", h.path)
	return nil
}
