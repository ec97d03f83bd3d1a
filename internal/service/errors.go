package service

import "errors"

// Sentinel errors for the operation surface. The transport layer (or
// the CLI) maps these onto its own status codes.
var (
	// ErrNotFound covers missing jobs, cache misses, and an empty index.
	ErrNotFound = errors.New("service: not found")

	// ErrNotReady means analytics was requested before its cache was
	// built; a compute has been started and the caller should retry.
	ErrNotReady = errors.New("service: analytics not ready yet, retry shortly")

	// ErrUnknownView is returned for an analytics view name outside the
	// computed set.
	ErrUnknownView = errors.New("service: unknown analytics view")
)
