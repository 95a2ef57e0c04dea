package api

import (
	"github.com/starford/depot/internal/media"
	"github.com/starford/depot/internal/models"
)

// UploadResponse is the envelope returned by POST /api/upload.
type UploadResponse struct {
	Success bool   `json:"success" example:"true" validate:"required"`
	URL     string `json:"url,omitempty" example:"/api/files/sekiller/1718000000000-a1b2c3d4.png"`
	Message string `json:"message,omitempty" example:"invalid directory"`
}

// StoredFile is the file record returned by listing endpoints (aliased from the domain layer).
type StoredFile = models.StoredFile

// FileListResponse wraps paginated file listings.
type FileListResponse struct {
	Files []StoredFile `json:"files" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []StoredFile `json:"results" validate:"required"`
}

// CategoriesResponse lists the allowed categories.
type CategoriesResponse struct {
	Categories []media.CategoryInfo `json:"categories" validate:"required"`
}
