package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/media"
	"github.com/starford/depot/internal/metrics"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *media.Service
	metrics *metrics.Metrics
}

// NewHandler creates a new Handler. m may be nil.
func NewHandler(svc *media.Service, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, metrics: m}
}

// ListFiles handles GET /api/files.
//
//	@Summary		List stored files, newest first
//	@Tags			files
//	@Produce		json
//	@Param			category	query		string	false	"Filter by category"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	FileListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	category := q.Get("category")

	items, total, err := h.svc.List(r.Context(), category, limit, offset)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCategory) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid category"))
			return
		}
		slog.Error("list files failed", slog.String("category", category), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []StoredFile{}
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: items, Total: total})
}

// FileInfo handles GET /api/files/{category}/{filename}/info.
//
//	@Summary		Get the indexed record of a stored file
//	@Tags			files
//	@Produce		json
//	@Param			category	path		string	true	"Category"
//	@Param			filename	path		string	true	"Stored filename"
//	@Success		200			{object}	StoredFile
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{category}/{filename}/info [get]
func (h *Handler) FileInfo(w http.ResponseWriter, r *http.Request) {
	category, ok1 := pathParam(r, "category")
	name, ok2 := pathParam(r, "filename")
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		return
	}
	rec, err := h.svc.Info(r.Context(), category, name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidCategory), errors.Is(err, apperr.ErrInvalidName):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			slog.Error("file info failed",
				slog.String("category", category),
				slog.String("name", name),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Search handles GET /api/search.
//
//	@Summary		Search stored files by original filename
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []StoredFile{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Categories handles GET /api/categories.
//
//	@Summary		List allowed upload categories
//	@Tags			files
//	@Produce		json
//	@Success		200	{object}	CategoriesResponse
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.CategoryInfos(r.Context())
	if err != nil {
		slog.Error("list categories failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: infos})
}
