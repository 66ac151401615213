package db

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

// OpenTestHandle opens a Handle on a fresh database file in t.TempDir()
// and registers cleanup.
func OpenTestHandle(t testing.TB) *Handle {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	h, err := Open(context.Background(), path, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open test handle: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}
