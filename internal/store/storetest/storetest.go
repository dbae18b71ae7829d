// Package storetest opens migrated throwaway stores for tests.
package storetest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/playperu/pubconquest/internal/database"
	"github.com/playperu/pubconquest/internal/migrations"
	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/store"
)

// DB opens a fresh, fully migrated SQLite database under t.TempDir.
func DB(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

// New returns a store over a fresh database. pub may be nil.
func New(t testing.TB, pub store.Publisher) *store.Store {
	t.Helper()
	return store.New(DB(t), pub)
}

// Recorder is a Publisher that keeps every change it receives.
type Recorder struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *Recorder) Publish(c realtime.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *Recorder) Changes() []realtime.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Change(nil), r.changes...)
}
