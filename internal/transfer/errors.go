package transfer

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned before any dial when host, username or
// password is unset. Not retryable.
var ErrMissingCredentials = errors.New("connection credentials incomplete")

// ConnectionError is a transport failure that survived every retry.
type ConnectionError struct {
	Host     string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed after %d attempts: %v", e.Host, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// LocalFileNotFoundError means the local source is absent. Not a transient
// condition, so never retried.
type LocalFileNotFoundError struct {
	Path string
}

func (e *LocalFileNotFoundError) Error() string {
	return fmt.Sprintf("local file not found: %s", e.Path)
}

// RemoteFileNotFoundError means the remote size probe failed on every
// attempt. Distinct from a transport error so callers can tell a missing
// file from a dead server.
type RemoteFileNotFoundError struct {
	Path string
	Err  error
}

func (e *RemoteFileNotFoundError) Error() string {
	return fmt.Sprintf("remote file not reachable: %s: %v", e.Path, e.Err)
}

func (e *RemoteFileNotFoundError) Unwrap() error { return e.Err }

// PathNotAccessibleError means the remote directory could not be entered.
type PathNotAccessibleError struct {
	Path string
	Err  error
}

func (e *PathNotAccessibleError) Error() string {
	return fmt.Sprintf("remote path not accessible: %s: %v", e.Path, e.Err)
}

func (e *PathNotAccessibleError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could change the outcome.
func retryable(err error) bool {
	var localNotFound *LocalFileNotFoundError
	var notAccessible *PathNotAccessibleError

	switch {
	case errors.Is(err, ErrMissingCredentials),
		errors.As(err, &localNotFound),
		errors.As(err, &notAccessible):
		return false
	default:
		return true
	}
}
