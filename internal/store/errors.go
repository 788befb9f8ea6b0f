package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")

	// ErrStorageBusy is returned when the write gate cannot be acquired
	// within the configured wait budget. Callers may retry.
	ErrStorageBusy = errors.New("storage busy: write lock wait timeout exceeded")
)
