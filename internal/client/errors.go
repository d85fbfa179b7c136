package client

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned for sync keys that name no known document.
var ErrUnknownKey = errors.New("unrecognized sync key")

// ErrRateLimited is returned when the server keeps answering 429.
type ErrRateLimited struct {
	RetryAfter int // seconds
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// StatusError is an unexpected HTTP status from the server.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}

// errMissing marks a key the server has no record for.
var errMissing = errors.New("no record on server")

// fetchError wraps a failure to reach the server.
type fetchError struct{ err error }

func (e fetchError) Error() string { return "fetch: " + e.err.Error() }
func (e fetchError) Unwrap() error { return e.err }
