// Package testutil provides shared fixtures for fincoach tests: a migrated
// SQLite store and a fluent snapshot builder.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/observe"
	"github.com/Veraticus/fincoach/internal/storage"
)

// TestDB is a migrated database scoped to one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions seeds a test database.
type TestDBOptions struct {
	Unknowns       []fallback.UnknownRecord
	Events         []observe.Event
	SkipMigrations bool
}

// SetupTestDB creates an empty, migrated database in the test's temp dir.
// It is closed automatically.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database and seeds it.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for _, r := range opts.Unknowns {
		if err := store.SaveUnknown(ctx, r); err != nil {
			t.Fatalf("failed to seed unknown query %q: %v", r.Utterance, err)
		}
	}
	for _, e := range opts.Events {
		if err := store.SaveEvent(ctx, e); err != nil {
			t.Fatalf("failed to seed event %q: %v", e.ID, err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustGetUnknown returns the stored record or fails the test.
func (db *TestDB) MustGetUnknown(id string) fallback.UnknownRecord {
	db.t.Helper()
	r, err := db.Storage.GetUnknown(context.Background(), id)
	if err != nil {
		db.t.Fatalf("unknown query %s: %v", id, err)
	}
	return r
}
