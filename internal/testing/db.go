// Package testing provides database helpers, fixtures and mocks for tests.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/bazaar-tracker/internal/database"
)

// profiles maps schema names to the profile production uses for them
var profiles = map[string]database.Profile{
	"ledger": database.ProfileLedger,
	"cache":  database.ProfileCache,
}

// NewTestDB creates a migrated SQLite database in a temporary directory.
// Supported names are "ledger" and "cache"; other names get an empty database.
// The database is closed when the test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	profile, ok := profiles[name]
	if !ok {
		profile = database.ProfileStandard
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db
}
