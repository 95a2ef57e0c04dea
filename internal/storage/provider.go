// Package storage defines the on-disk layout for stored files:
// <root>/<category>/<name>, one flat directory per category.
package storage

import "github.com/starford/depot/internal/models"

// TempPrefix marks in-flight writes. Files carrying it are never listed,
// indexed or served.
const TempPrefix = ".depot-tmp-"

// Provider is the interface for stored-file operations. Categories and names
// must be plain path segments; allow-list checks happen above this layer.
type Provider interface {
	// Root returns the absolute storage root.
	Root() string
	// Create atomically writes a new file, creating the category directory
	// first when it is missing. It never overwrites.
	Create(category, name string, data []byte) error
	// Read returns the full contents of a file.
	Read(category, name string) ([]byte, error)
	// Stat returns metadata for a single regular file.
	Stat(category, name string) (models.FileMetadata, error)
	// List returns metadata for every regular file in a category.
	List(category string) ([]models.FileMetadata, error)
	// Locate maps an absolute path back to (category, name).
	Locate(abs string) (category, name string, ok bool)
}
