package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrNotFound is returned by Get when the key has never been written.
	// Callers treat it as a normal cold-start condition, not a failure.
	ErrNotFound = errors.New("blob not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (one file per key)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
