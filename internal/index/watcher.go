package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/depot/internal/category"
	"github.com/starford/depot/internal/checksum"
	"github.com/starford/depot/internal/contenttype"
	"github.com/starford/depot/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventRemoved = "removed"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind, category, name string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the storage root and every allowed
// category directory and keeps the index in step with files that are added
// or removed outside the upload path, until ctx is cancelled.
//
// Category directories created at runtime are added to the watch list.
// Rename events schedule a debounced Sync to pick up the new location.
func Watch(ctx context.Context, db FileIndex, store storage.Provider, cats *category.Set, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	for _, c := range cats.Names() {
		dir := filepath.Join(root, c)
		if err := w.Add(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			stats, err := Sync(ctx, db, store, cats, logger)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: reconciled",
				slog.Int("added", stats.Added),
				slog.Int("removed", stats.Removed))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			handleEvent(ctx, w, ev, db, store, cats, logger, cb, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func handleEvent(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event, db FileIndex, store storage.Provider,
	cats *category.Set, logger *slog.Logger, cb EventCallback, scheduleReconcile func()) {
	// A category directory appearing under the root.
	if ev.Op&fsnotify.Create != 0 && filepath.Dir(ev.Name) == store.Root() {
		c := filepath.Base(ev.Name)
		if !cats.Contains(c) {
			return
		}
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.Add(ev.Name); err != nil {
				logger.Warn("watcher: add category dir failed",
					slog.String("category", c),
					slog.String("error", err.Error()))
				return
			}
			logger.Debug("watcher: watching category", slog.String("category", c))
			indexCategory(ctx, db, store, c, logger, cb)
		}
		return
	}

	c, name, ok := store.Locate(ev.Name)
	if !ok || !cats.Contains(c) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		meta, err := store.Stat(c, name)
		if err != nil {
			return
		}
		added, err := indexFromDisk(ctx, db, store, meta)
		if err != nil {
			logger.Warn("watcher: index failed",
				slog.String("category", c),
				slog.String("name", name),
				slog.String("error", err.Error()))
			return
		}
		if added {
			logger.Debug("watcher: indexed", slog.String("category", c), slog.String("name", name))
			if cb != nil {
				cb(EventCreated, c, name)
			}
		}

	case ev.Op&fsnotify.Write != 0:
		refresh(ctx, db, store, c, name, logger)

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		had, err := db.Has(ctx, c, name)
		if err != nil || !had {
			if ev.Op&fsnotify.Rename != 0 {
				scheduleReconcile()
			}
			return
		}
		if err := db.Delete(ctx, c, name); err != nil {
			logger.Warn("watcher: delete failed",
				slog.String("category", c),
				slog.String("name", name),
				slog.String("error", err.Error()))
			return
		}
		logger.Debug("watcher: removed", slog.String("category", c), slog.String("name", name))
		if cb != nil {
			cb(EventRemoved, c, name)
		}
		if ev.Op&fsnotify.Rename != 0 {
			scheduleReconcile()
		}
	}
}

// refresh recomputes size, type and checksum for a file written in place by
// an outside process. The recorded original name is kept.
func refresh(ctx context.Context, db FileIndex, store storage.Provider, c, name string, logger *slog.Logger) {
	rec, err := db.Get(ctx, c, name)
	if err != nil {
		return
	}
	data, err := store.Read(c, name)
	if err != nil {
		return
	}
	rec.Size = int64(len(data))
	rec.ContentType = contenttype.Detect(data)
	rec.Checksum = checksum.Sum(data)
	if err := db.Upsert(ctx, *rec); err != nil {
		logger.Warn("watcher: refresh failed",
			slog.String("category", c),
			slog.String("name", name),
			slog.String("error", err.Error()))
	}
}

// indexCategory indexes files already present in a newly created category directory.
func indexCategory(ctx context.Context, db FileIndex, store storage.Provider, c string, logger *slog.Logger, cb EventCallback) {
	metas, err := store.List(c)
	if err != nil {
		logger.Warn("watcher: list failed", slog.String("category", c), slog.String("error", err.Error()))
		return
	}
	for _, m := range metas {
		added, err := indexFromDisk(ctx, db, store, m)
		if err != nil || !added {
			continue
		}
		logger.Debug("watcher: indexed from new dir", slog.String("category", c), slog.String("name", m.Name))
		if cb != nil {
			cb(EventCreated, c, m.Name)
		}
	}
}
