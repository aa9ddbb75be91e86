package store

import (
	"errors"
	"fmt"
	"testing"
)

// TestRemoteError_Error verifies error message formatting
func TestRemoteError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *RemoteError
		wantFormat string
	}{
		{
			name: "with HTTP status code",
			err: &RemoteError{
				Operation:  "fetch",
				StatusCode: 503,
				Message:    "service unavailable",
			},
			wantFormat: "remote error during fetch (HTTP 503): service unavailable",
		},
		{
			name: "without HTTP status code",
			err: &RemoteError{
				Operation:  "fetch",
				StatusCode: 0,
				Message:    "connection reset",
			},
			wantFormat: "remote error during fetch: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantFormat {
				t.Errorf("Error() = %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

// TestLocalError_Error verifies error message formatting
func TestLocalError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *LocalError
		wantFormat string
	}{
		{
			name: "with underlying error",
			err: &LocalError{
				Operation: "create_dir",
				Path:      "/data/u1",
				Err:       errors.New("permission denied"),
			},
			wantFormat: "local resource error during create_dir for '/data/u1': permission denied",
		},
		{
			name: "without underlying error",
			err: &LocalError{
				Operation: "write",
				Path:      "/data/u1/a.txt",
			},
			wantFormat: "local resource error during write for '/data/u1/a.txt'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantFormat {
				t.Errorf("Error() = %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

// TestRemoteError_Unwrap verifies error chain traversal
func TestRemoteError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RemoteError{
		Operation:  "fetch",
		StatusCode: 500,
		Message:    "internal server error",
		Err:        cause,
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}
}

// TestLocalError_Unwrap verifies error chain traversal
func TestLocalError_Unwrap(t *testing.T) {
	cause := errors.New("no space left on device")
	err := &LocalError{
		Operation: "write",
		Path:      "/data/u1/a.txt",
		Err:       cause,
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}
}

// TestErrors_As verifies the two kinds stay distinguishable through a chain,
// which is what the retry policy switches on
func TestErrors_As(t *testing.T) {
	remote := fmt.Errorf("context: %w", &RemoteError{Operation: "fetch", StatusCode: 503, Message: "slow down"})
	local := fmt.Errorf("context: %w", &LocalError{Operation: "create_dir", Path: "/data/u1"})

	var remoteTarget *RemoteError
	if !errors.As(remote, &remoteTarget) {
		t.Fatal("errors.As() should extract RemoteError from wrapped chain")
	}

	if remoteTarget.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", remoteTarget.StatusCode)
	}

	if errors.As(remote, new(*LocalError)) {
		t.Error("remote chain should not match LocalError")
	}

	var localTarget *LocalError
	if !errors.As(local, &localTarget) {
		t.Fatal("errors.As() should extract LocalError from wrapped chain")
	}

	if localTarget.Path != "/data/u1" {
		t.Errorf("Path = %q, want %q", localTarget.Path, "/data/u1")
	}

	if errors.As(local, new(*RemoteError)) {
		t.Error("local chain should not match RemoteError")
	}
}

// TestErrorTypes_Nil verifies nil underlying error handling
func TestErrorTypes_Nil(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "RemoteError with nil Err",
			err:  &RemoteError{Operation: "probe", StatusCode: 500, Message: "error", Err: nil},
		},
		{
			name: "LocalError with nil Err",
			err:  &LocalError{Operation: "create_file", Path: "/data/u1/a.txt", Err: nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unwrapped := errors.Unwrap(tt.err); unwrapped != nil {
				t.Errorf("Unwrap() = %v, want nil", unwrapped)
			}

			if errMsg := tt.err.Error(); errMsg == "" {
				t.Error("Error() should return non-empty string even when Err is nil")
			}
		})
	}
}

// TestLocator verifies key and URI derivation
func TestLocator(t *testing.T) {
	loc := Locator{Bucket: "tcga-open", ID: "u1", Name: "a.txt"}

	if got := loc.Key(); got != "u1/a.txt" {
		t.Errorf("Key() = %q, want %q", got, "u1/a.txt")
	}

	if got := loc.URI(); got != "s3://tcga-open/u1/a.txt" {
		t.Errorf("URI() = %q, want %q", got, "s3://tcga-open/u1/a.txt")
	}
}
