package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/depot/internal/media"
	"github.com/starford/depot/internal/metrics"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced on the write and
// listing routes; serving files and listing categories stay public.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// m may be nil.
func NewRouter(svc *media.Service, authEnabled bool, token string, sseHandler http.Handler, m *metrics.Metrics) chi.Router {
	h := NewHandler(svc, m)

	r := chi.NewRouter()

	// Public.
	r.Get("/files/{category}/{filename}", h.ServeFile)
	r.Get("/files/", h.MissingSegment)
	r.Get("/files/{category}", h.MissingSegment)
	r.Get("/files/{category}/", h.MissingSegment)
	r.Get("/categories", h.Categories)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Post("/upload", h.Upload)
		r.Get("/files", h.ListFiles)
		r.Get("/files/{category}/{filename}/info", h.FileInfo)
		r.Get("/search", h.Search)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
