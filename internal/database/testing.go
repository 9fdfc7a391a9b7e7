package database

import (
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated database of the given name inside t.TempDir().
func NewTestDB(t testing.TB, name string) *DB {
	t.Helper()

	profile := ProfileLedger
	if name == "cache" {
		profile = ProfileCache
	}

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}
