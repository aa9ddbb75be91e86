package store

import "fmt"

// RemoteError represents a failure attributed to the object store or the
// network path to it: 5xx responses, rate limiting, connection resets,
// truncated reads. Remote errors are the retryable class.
type RemoteError struct {
	Operation  string // The store operation that failed (e.g., "fetch", "list")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Message    string // Diagnostic from the store or transport layer
	Err        error  // Underlying error, if any
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("remote error during %s: %s", e.Operation, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// LocalError represents a failure attributed to the local filesystem:
// directory creation, file creation, short writes, disk full. Retrying
// cannot change a local resource condition, so this class is never retried.
type LocalError struct {
	Operation string // The local operation that failed (e.g., "create_dir", "write")
	Path      string // The path involved
	Err       error  // Underlying error, if any
}

func (e *LocalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("local resource error during %s for '%s': %v", e.Operation, e.Path, e.Err)
	}

	return fmt.Sprintf("local resource error during %s for '%s'", e.Operation, e.Path)
}

func (e *LocalError) Unwrap() error {
	return e.Err
}
