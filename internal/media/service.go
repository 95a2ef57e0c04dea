// Package media implements the upload and serving core: it validates the
// category allow-list, names and persists uploads, and reads them back.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/category"
	"github.com/starford/depot/internal/checksum"
	"github.com/starford/depot/internal/contenttype"
	"github.com/starford/depot/internal/index"
	"github.com/starford/depot/internal/models"
	"github.com/starford/depot/internal/naming"
	"github.com/starford/depot/internal/storage"
)

// ServePrefix is the public path under which stored files are served.
const ServePrefix = "/api/files"

// nameAttempts bounds retries when a generated name is already taken.
const nameAttempts = 3

// Publisher receives stored-file events.
type Publisher interface {
	PublishFileEvent(kind, category, name string)
}

// Blob is a stored file read back for serving.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// CategoryInfo describes one allowed category.
type CategoryInfo struct {
	Name  string `json:"name"`
	Files int    `json:"files"`
	URL   string `json:"url"`
}

// Service coordinates storage and index operations for stored files.
type Service struct {
	store     storage.Provider
	db        index.FileIndex
	cats      *category.Set
	publisher Publisher
	logger    *slog.Logger
	maxBytes  int64
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event sink notified after each upload.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxBytes caps the accepted payload size. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(s *Service) { s.maxBytes = n }
}

// WithClock overrides the time source used for generated names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a media service. The same category set guards both
// uploads and reads.
func NewService(store storage.Provider, db index.FileIndex, cats *category.Set, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		cats:   cats,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories returns the allow-list shared by every path of the service.
func (s *Service) Categories() *category.Set {
	return s.cats
}

// MaxBytes returns the configured payload cap, zero when uncapped.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// URL returns the retrieval path for a stored file.
func URL(category, name string) string {
	return ServePrefix + "/" + category + "/" + name
}

// Upload validates and persists one payload and returns its record.
// Validation failures return apperr sentinels and touch nothing on disk.
func (s *Service) Upload(ctx context.Context, category, originalName string, data []byte) (*models.StoredFile, error) {
	if len(data) == 0 {
		return nil, apperr.ErrEmptyPayload
	}
	if !s.cats.Contains(category) {
		return nil, apperr.ErrInvalidCategory
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, apperr.ErrTooLarge
	}

	now := s.now()
	var name string
	for attempt := 0; ; attempt++ {
		name = naming.Generate(now, originalName)
		err := s.store.Create(category, name, data)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrAlreadyExists) || attempt+1 >= nameAttempts {
			return nil, err
		}
	}

	rec := models.StoredFile{
		Category:     category,
		Name:         name,
		OriginalName: cleanOriginal(originalName, name),
		Size:         int64(len(data)),
		ContentType:  contenttype.Detect(data),
		Checksum:     checksum.Sum(data),
		CreatedAt:    now.UTC(),
		URL:          URL(category, name),
	}

	// The file on disk is authoritative; a failed index write is repaired by
	// the next sync and must not fail the upload.
	if err := s.db.Upsert(ctx, rec); err != nil {
		s.logger.Warn("media: index upload failed",
			slog.String("category", category),
			slog.String("name", name),
			slog.String("error", err.Error()))
	}
	if s.publisher != nil {
		s.publisher.PublishFileEvent(index.EventCreated, category, name)
	}
	return &rec, nil
}

// Open reads a stored file for serving. The category and name are validated
// before any filesystem access.
func (s *Service) Open(_ context.Context, category, name string) (*Blob, error) {
	if err := s.validateKey(category, name); err != nil {
		return nil, err
	}
	if _, err := s.store.Stat(category, name); err != nil {
		return nil, notFound(err)
	}
	data, err := s.store.Read(category, name)
	if err != nil {
		return nil, notFound(err)
	}
	return &Blob{
		Name:        name,
		ContentType: contenttype.ByExtension(name),
		Data:        data,
	}, nil
}

// Info returns the indexed record of a stored file.
func (s *Service) Info(ctx context.Context, category, name string) (*models.StoredFile, error) {
	if err := s.validateKey(category, name); err != nil {
		return nil, err
	}
	rec, err := s.db.Get(ctx, category, name)
	if err != nil {
		return nil, err
	}
	rec.URL = URL(rec.Category, rec.Name)
	return rec, nil
}

// List returns indexed records newest first. An empty category lists all.
func (s *Service) List(ctx context.Context, category string, limit, offset int) ([]models.StoredFile, int, error) {
	if category != "" && !s.cats.Contains(category) {
		return nil, 0, apperr.ErrInvalidCategory
	}
	items, total, err := s.db.List(ctx, category, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	withURLs(items)
	return items, total, nil
}

// Search matches query against original and stored file names.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.StoredFile, error) {
	items, err := s.db.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	withURLs(items)
	return items, nil
}

// CategoryInfos returns every allowed category with its indexed file count.
func (s *Service) CategoryInfos(ctx context.Context) ([]CategoryInfo, error) {
	counts, err := s.db.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	names := s.cats.Names()
	out := make([]CategoryInfo, len(names))
	for i, n := range names {
		out[i] = CategoryInfo{Name: n, Files: counts[n], URL: ServePrefix + "/" + n}
	}
	return out, nil
}

// Sync reconciles the index with the storage root.
func (s *Service) Sync(ctx context.Context) (index.SyncStats, error) {
	return index.Sync(ctx, s.db, s.store, s.cats, s.logger)
}

func (s *Service) validateKey(category, name string) error {
	if !s.cats.Contains(category) {
		return apperr.ErrInvalidCategory
	}
	if !naming.Valid(name) {
		return apperr.ErrInvalidName
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.ErrNotFound
	}
	return fmt.Errorf("media: %w", err)
}

func withURLs(items []models.StoredFile) {
	for i := range items {
		items[i].URL = URL(items[i].Category, items[i].Name)
	}
}

// cleanOriginal keeps only the base name of a client-supplied filename.
func cleanOriginal(original, fallback string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	return base
}
