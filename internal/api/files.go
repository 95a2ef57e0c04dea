package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/metrics"
)

const (
	// multipartOverhead is the slack allowed on top of the payload cap for
	// boundaries, part headers and the directory field.
	multipartOverhead = 64 << 10
	// formMemory is the part of a multipart form kept in memory before
	// spilling to temporary files.
	formMemory = 32 << 20
)

// pathParam returns a decoded chi URL parameter. Encoded separators such as
// %2F decode to "/" and are rejected by name validation downstream.
func pathParam(r *http.Request, key string) (string, bool) {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return decoded, true
}

// categoryLabel keeps metric labels within the allow-list.
func (h *Handler) categoryLabel(category string) string {
	if h.svc.Categories().Contains(category) {
		return category
	}
	return metrics.InvalidCategory
}

// Upload handles POST /api/upload (multipart/form-data, fields "file" and "directory").
//
//	@Summary		Upload a file into a category
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"File payload"
//	@Param			directory	formData	string	true	"Target category"
//	@Success		201			{object}	UploadResponse
//	@Failure		400			{object}	UploadResponse
//	@Failure		413			{object}	UploadResponse
//	@Failure		500			{object}	UploadResponse
//	@Security		BearerAuth
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.svc.MaxBytes()
	if maxBytes > 0 {
		if r.ContentLength > maxBytes+multipartOverhead {
			h.metrics.Upload("", metrics.ResultTooLarge, 0)
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadFailure("file too large"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.metrics.Upload("", metrics.ResultTooLarge, 0)
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadFailure("file too large"))
			return
		}
		h.metrics.Upload("", metrics.ResultInvalid, 0)
		writeJSON(w, http.StatusBadRequest, uploadFailure("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	category := r.PostFormValue("directory")
	if category == "" {
		h.metrics.Upload("", metrics.ResultInvalid, 0)
		writeJSON(w, http.StatusBadRequest, uploadFailure("directory is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.Upload(h.categoryLabel(category), metrics.ResultInvalid, 0)
		writeJSON(w, http.StatusBadRequest, uploadFailure("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("read upload failed", slog.String("category", category), slog.String("error", err.Error()))
		h.metrics.Upload(h.categoryLabel(category), metrics.ResultError, 0)
		writeJSON(w, http.StatusInternalServerError, uploadFailure("upload failed"))
		return
	}

	rec, err := h.svc.Upload(r.Context(), category, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrEmptyPayload):
			h.metrics.Upload(h.categoryLabel(category), metrics.ResultInvalid, 0)
			writeJSON(w, http.StatusBadRequest, uploadFailure("file is empty"))
		case errors.Is(err, apperr.ErrInvalidCategory):
			h.metrics.Upload(h.categoryLabel(category), metrics.ResultInvalid, 0)
			writeJSON(w, http.StatusBadRequest, uploadFailure("invalid directory"))
		case errors.Is(err, apperr.ErrTooLarge):
			h.metrics.Upload(h.categoryLabel(category), metrics.ResultTooLarge, 0)
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadFailure("file too large"))
		default:
			slog.Error("upload failed",
				slog.String("category", category),
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()))
			h.metrics.Upload(h.categoryLabel(category), metrics.ResultError, 0)
			writeJSON(w, http.StatusInternalServerError, uploadFailure("upload failed"))
		}
		return
	}

	h.metrics.Upload(h.categoryLabel(category), metrics.ResultOK, len(data))
	writeJSON(w, http.StatusCreated, UploadResponse{Success: true, URL: rec.URL})
}

// MissingSegment handles file paths without a category or filename.
func (h *Handler) MissingSegment(w http.ResponseWriter, _ *http.Request) {
	h.metrics.Serve(metrics.ResultInvalid)
	writeText(w, http.StatusBadRequest, "invalid path")
}

// ServeFile handles GET /api/files/{category}/{filename}.
//
//	@Summary		Download a stored file
//	@Tags			files
//	@Produce		octet-stream
//	@Param			category	path	string	true	"Category"
//	@Param			filename	path	string	true	"Stored filename"
//	@Success		200
//	@Failure		400	{string}	string	"invalid path"
//	@Failure		404	{string}	string	"file not found"
//	@Router			/files/{category}/{filename} [get]
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	category, ok1 := pathParam(r, "category")
	name, ok2 := pathParam(r, "filename")
	if !ok1 || !ok2 || category == "" || name == "" {
		h.metrics.Serve(metrics.ResultInvalid)
		writeText(w, http.StatusBadRequest, "invalid path")
		return
	}

	blob, err := h.svc.Open(r.Context(), category, name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidCategory):
			h.metrics.Serve(metrics.ResultInvalid)
			writeText(w, http.StatusBadRequest, "invalid directory")
		case errors.Is(err, apperr.ErrInvalidName):
			h.metrics.Serve(metrics.ResultInvalid)
			writeText(w, http.StatusBadRequest, "invalid filename")
		case errors.Is(err, apperr.ErrNotFound):
			h.metrics.Serve(metrics.ResultNotFound)
			writeText(w, http.StatusNotFound, "file not found")
		default:
			slog.Error("serve file failed",
				slog.String("category", category),
				slog.String("name", name),
				slog.String("error", err.Error()))
			h.metrics.Serve(metrics.ResultError)
			writeText(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.metrics.Serve(metrics.ResultOK)
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
