package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by calls that need a bearer token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnknownChapter is returned for a chapter key outside the catalog.
	ErrUnknownChapter = errors.New("unknown chapter")

	// ErrAllComplete is returned by MoveToNextChapter at the end of the
	// curriculum.
	ErrAllComplete = errors.New("all chapters completed")
)

// HTTPError is a non-2xx response from the progress service.
type HTTPError struct {
	Op         string
	StatusCode int
	// Message is the server's "error" field, or the status text.
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, e.Message)
}

// SyncError reports a progress POST that failed on every attempt.
type SyncError struct {
	Attempts int
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("progress sync failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
