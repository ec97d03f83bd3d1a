// Package drive is a typed adapter over the Google Drive v3 API.
// It exposes exactly the remote semantics the index core depends on:
// paginated listing, the changes feed, the start page token, the account
// overview, and a cheap modified-since probe. Errors are classified into
// sentinel errors; there is no in-adapter retry — callers decide.
package drive

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for remote failure classification.
// Use errors.Is(err, drive.ErrAuth) to check.
var (
	// ErrAuth covers missing, rejected, or insufficient credentials.
	ErrAuth = errors.New("drive: auth error")

	// ErrNotFound is returned for a missing file id.
	ErrNotFound = errors.New("drive: not found")

	// ErrChangeTokenExpired means the continuation token is too old and
	// the change feed can no longer be resumed from it (HTTP 410). The
	// only recovery is a full crawl.
	ErrChangeTokenExpired = errors.New("drive: change token expired")

	// ErrRemote covers every other error payload the API returned.
	ErrRemote = errors.New("drive: remote error")

	// ErrNetwork marks transport-level failures (no response at all).
	ErrNetwork = errors.New("drive: network error")
)

// APIError wraps a sentinel with the HTTP status and message body from
// the Drive API for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("drive: HTTP %d: %s", e.StatusCode, e.Message)
	}

	return "drive: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classify maps an error from the Google API client to an *APIError
// with the right sentinel. Transport errors (no HTTP response) become
// ErrNetwork so callers can distinguish them from remote rejections.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &APIError{Message: op + ": " + err.Error(), Err: ErrNetwork}
	}

	sentinel := ErrRemote

	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrAuth
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusGone:
		sentinel = ErrChangeTokenExpired
	}

	return &APIError{
		StatusCode: gerr.Code,
		Message:    op + ": " + gerr.Message,
		Err:        sentinel,
	}
}
