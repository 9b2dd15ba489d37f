package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the permanent failure classes. Both surface
// immediately, without retry.
var (
	// ErrNotFound is returned when the project, file, or thread does
	// not exist on the remote store.
	ErrNotFound = errors.New("remote: not found")

	// ErrPermission is returned when the remote store permanently
	// denies access to the resource.
	ErrPermission = errors.New("remote: permission denied")
)

// UnavailableError is returned once a call's retry budget is exhausted.
// It wraps the last transient error observed.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err represents an exhausted retry
// budget against the remote store.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// transientStatus reports whether an HTTP status counts as transient:
// rate limiting, timeouts, server errors, and token staleness (401,
// which clears once the session layer refreshes the bearer token).
func transientStatus(code int) bool {
	switch {
	case code == http.StatusUnauthorized:
		return true
	case code == http.StatusRequestTimeout:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
