// Package apperr holds the sentinel errors shared across layers.
// Handlers map them to status codes with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidName     = errors.New("invalid file name")
	ErrEmptyPayload    = errors.New("empty payload")
	ErrTooLarge        = errors.New("payload too large")
)
