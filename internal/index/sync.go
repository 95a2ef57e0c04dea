package index

import (
	"context"
	"log/slog"

	"github.com/starford/depot/internal/category"
	"github.com/starford/depot/internal/checksum"
	"github.com/starford/depot/internal/contenttype"
	"github.com/starford/depot/internal/models"
	"github.com/starford/depot/internal/naming"
	"github.com/starford/depot/internal/storage"
)

// SyncStats summarises one reconciliation pass.
type SyncStats struct {
	Scanned int `json:"scanned"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Sync walks every allowed category and brings the index up to date:
//   - files on disk without a record are indexed
//   - records whose file is gone, or whose category is no longer allowed,
//     are dropped
func Sync(ctx context.Context, db FileIndex, store storage.Provider, cats *category.Set, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	keys, err := db.AllKeys(ctx)
	if err != nil {
		return stats, err
	}

	disk := make(map[Key]struct{})
	for _, c := range cats.Names() {
		metas, err := store.List(c)
		if err != nil {
			return stats, err
		}
		for _, m := range metas {
			stats.Scanned++
			k := Key{Category: m.Category, Name: m.Name}
			disk[k] = struct{}{}
			if _, ok := keys[k]; ok {
				continue
			}
			added, err := indexFromDisk(ctx, db, store, m)
			if err != nil {
				logger.Warn("sync: index failed",
					slog.String("category", m.Category),
					slog.String("name", m.Name),
					slog.String("error", err.Error()))
				continue
			}
			if added {
				stats.Added++
				logger.Debug("sync: indexed", slog.String("category", m.Category), slog.String("name", m.Name))
			}
		}
	}

	for k := range keys {
		if _, ok := disk[k]; ok {
			continue
		}
		if err := db.Delete(ctx, k.Category, k.Name); err != nil {
			logger.Warn("sync: delete failed",
				slog.String("category", k.Category),
				slog.String("name", k.Name),
				slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("category", k.Category), slog.String("name", k.Name))
	}

	return stats, nil
}

// indexFromDisk records a file that reached the storage root without going
// through the upload path. The stored name doubles as the original name.
func indexFromDisk(ctx context.Context, db FileIndex, store storage.Provider, m models.FileMetadata) (bool, error) {
	data, err := store.Read(m.Category, m.Name)
	if err != nil {
		return false, err
	}
	created, ok := naming.Timestamp(m.Name)
	if !ok {
		created = m.ModTime
	}
	return db.InsertIfAbsent(ctx, models.StoredFile{
		Category:     m.Category,
		Name:         m.Name,
		OriginalName: m.Name,
		Size:         int64(len(data)),
		ContentType:  contenttype.Detect(data),
		Checksum:     checksum.Sum(data),
		CreatedAt:    created,
	})
}
