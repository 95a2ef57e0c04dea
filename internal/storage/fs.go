package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/models"
	"github.com/starford/depot/internal/naming"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the storage root
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute storage root.
func (f *FS) Root() string {
	return f.root
}

func (f *FS) dirPath(category string) (string, error) {
	if !naming.Valid(category) {
		return "", fmt.Errorf("storage: category %q: %w", category, apperr.ErrInvalidCategory)
	}
	return f.under(filepath.Join(f.root, category))
}

func (f *FS) filePath(category, name string) (string, error) {
	dir, err := f.dirPath(category)
	if err != nil {
		return "", err
	}
	if !naming.Valid(name) || strings.HasPrefix(name, TempPrefix) {
		return "", fmt.Errorf("storage: name %q: %w", name, apperr.ErrInvalidName)
	}
	return f.under(filepath.Join(dir, name))
}

// under rejects any resolved path that escapes the root.
func (f *FS) under(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", p)
	}
	return abs, nil
}

// EnsureDir creates the category directory and any missing parents.
// A directory created concurrently by another caller is not an error.
func (f *FS) EnsureDir(category string) error {
	dir, err := f.dirPath(category)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", category, err)
	}
	return nil
}

// Create makes sure the category directory exists, writes data to a temp file
// in it, fsyncs it and hard-links it to its final name. Linking fails if the name is taken, so an
// existing file is never replaced and readers never observe a partial file.
func (f *FS) Create(category, name string, data []byte) error {
	abs, err := f.filePath(category, name)
	if err != nil {
		return err
	}
	if err := f.EnsureDir(category); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: %s/%s: %w", category, name, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("storage: link: %w", err)
	}
	return nil
}

// Read returns the raw bytes of a stored file.
func (f *FS) Read(category, name string) ([]byte, error) {
	abs, err := f.filePath(category, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", category, name, err)
	}
	return data, nil
}

// Stat returns metadata for a regular file. Directories report fs.ErrNotExist.
func (f *FS) Stat(category, name string) (models.FileMetadata, error) {
	abs, err := f.filePath(category, name)
	if err != nil {
		return models.FileMetadata{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("storage: stat %s/%s: %w", category, name, err)
	}
	if !info.Mode().IsRegular() {
		return models.FileMetadata{}, fmt.Errorf("storage: stat %s/%s: %w", category, name, fs.ErrNotExist)
	}
	return models.FileMetadata{
		Category: category,
		Name:     name,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// List returns every regular, non-temporary file in a category sorted by name.
// A category directory that does not exist yet lists as empty.
func (f *FS) List(category string) ([]models.FileMetadata, error) {
	dir, err := f.dirPath(category)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", category, err)
	}
	out := make([]models.FileMetadata, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !naming.Valid(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: list %s: %w", category, err)
		}
		out = append(out, models.FileMetadata{
			Category: category,
			Name:     e.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Locate maps an absolute path directly under <root>/<category>/ back to its
// segments. Temp files and deeper paths are rejected.
func (f *FS) Locate(abs string) (string, string, bool) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	category, name := parts[0], parts[1]
	if !naming.Valid(category) || !naming.Valid(name) || strings.HasPrefix(name, TempPrefix) {
		return "", "", false
	}
	return category, name, true
}
