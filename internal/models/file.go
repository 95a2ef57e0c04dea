// Package models defines the domain types for depot.
package models

import "time"

// StoredFile is an immutable uploaded blob identified by (Category, Name).
type StoredFile struct {
	Category     string    `json:"category"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
	URL          string    `json:"url"`
}

// FileMetadata is the lightweight view returned by storage listings.
type FileMetadata struct {
	Category string    `json:"category"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}
