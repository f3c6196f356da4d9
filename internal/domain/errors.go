package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	// ErrStore marks record store failures (connectivity, constraints).
	ErrStore = errors.New("store error")
)
