// Package testutil provides shared test helpers for storage roots and index databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/depot/internal/category"
	"github.com/starford/depot/internal/index"
	"github.com/starford/depot/internal/storage"
)

// DefaultCategories mirrors the portal's category list used in tests.
var DefaultCategories = []string{
	"sekiller", "haberler", "projeler", "ekip", "dergiler",
	"belgeler", "etkinlikler", "duyurular", "egitimler",
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "depot-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary storage root with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// TestCategories returns the default category set.
func TestCategories(t *testing.T) *category.Set {
	t.Helper()
	cats, err := category.New(DefaultCategories...)
	if err != nil {
		t.Fatal(err)
	}
	return cats
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
