// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/depot/internal/api"
	"github.com/starford/depot/internal/index"
	"github.com/starford/depot/internal/mcpserver"
	"github.com/starford/depot/internal/media"
	"github.com/starford/depot/internal/metrics"
	"github.com/starford/depot/internal/sse"
	"github.com/starford/depot/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	db      *index.DB
	svc     *media.Service
	metrics *metrics.Metrics
	broker  *sse.Broker
}

func (rt *runtime) close() {
	if rt.broker != nil {
		rt.broker.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

// setup builds logger, storage, index and media service from the options.
func setup(opts ...Option) (*runtime, error) {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	var out io.Writer = os.Stdout
	if app.logOutput != nil {
		out = app.logOutput
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_root", cfg.Storage.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int64("max_upload_bytes", cfg.Storage.MaxUploadBytes),
		slog.Any("categories", cfg.Storage.Categories),
		slog.String("log_level", cfg.App.LogLevel.String()))

	cats, err := cfg.Storage.CategorySet()
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	// Ensure storage root exists. Category directories are created on first upload.
	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	store, err := storage.NewFS(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store, db: db}
	if cfg.Metrics.Enabled {
		rt.metrics = metrics.New(cfg.Metrics.Namespace)
	}
	rt.broker = sse.NewBroker(2 * time.Second)
	rt.svc = media.NewService(store, db, cats,
		media.WithPublisher(rt.broker),
		media.WithLogger(logger),
		media.WithMaxBytes(cfg.Storage.MaxUploadBytes),
	)
	return rt, nil
}

func (rt *runtime) sync(ctx context.Context) {
	stats, err := rt.svc.Sync(ctx)
	if err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	rt.logger.Info("initial sync done",
		slog.Int("scanned", stats.Scanned),
		slog.Int("added", stats.Added),
		slog.Int("removed", stats.Removed))
}

// handler builds the root chi router.
func (rt *runtime) handler() http.Handler {
	apiRouter := api.NewRouter(rt.svc, rt.cfg.Auth.AuthEnabled(), rt.cfg.Auth.Token, rt.broker, rt.metrics)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(req.Context()); err != nil {
			rt.logger.Error("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts...)
	if err != nil {
		return err
	}
	defer rt.close()

	logger := rt.logger
	cfg := rt.cfg

	rt.sync(ctx)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           rt.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, rt.db, rt.store, rt.svc.Categories(), logger, rt.broker.PublishFileEvent)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := setup(append(opts, WithLogOutput(os.Stderr))...)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.sync(ctx)

	srv := mcpserver.New(rt.svc, app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// Reindex reconciles the index with the storage root once and reports the result.
func Reindex(ctx context.Context, opts ...Option) (index.SyncStats, error) {
	rt, err := setup(opts...)
	if err != nil {
		return index.SyncStats{}, err
	}
	defer rt.close()

	return rt.svc.Sync(ctx)
}
