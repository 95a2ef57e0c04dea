package index

import (
	"context"

	"github.com/starford/depot/internal/models"
)

// Key identifies a stored file.
type Key struct {
	Category string
	Name     string
}

// FileIndex defines the interface for stored-file index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type FileIndex interface {
	Upsert(ctx context.Context, f models.StoredFile) error
	InsertIfAbsent(ctx context.Context, f models.StoredFile) (bool, error)
	Get(ctx context.Context, category, name string) (*models.StoredFile, error)
	Has(ctx context.Context, category, name string) (bool, error)
	List(ctx context.Context, category string, limit, offset int) ([]models.StoredFile, int, error)
	Search(ctx context.Context, query string, limit int) ([]models.StoredFile, error)
	Delete(ctx context.Context, category, name string) error
	AllKeys(ctx context.Context) (map[Key]struct{}, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	Close() error
}

// Verify *DB satisfies FileIndex at compile time.
var _ FileIndex = (*DB)(nil)
