// Package outcome defines the terminal status taxonomy and the append-only
// run log. The log is persisted state, not just a report: it feeds the retry
// generator, so its format changes must stay load-compatible.
package outcome

import "time"

// Status is the terminal classification of one catalog entry in one run.
// Every entry that enters the pipeline ends with exactly one of these.
type Status string

const (
	SuccessVerified          Status = "SUCCESS_VERIFIED"
	SkippedLocalVerified     Status = "SKIPPED_LOCAL_VERIFIED"
	SkippedExtensionFiltered Status = "SKIPPED_EXTENSION_FILTERED"
	SkippedRemoteNotFound    Status = "SKIPPED_REMOTE_NOT_FOUND"
	SkippedRemoteForbidden   Status = "SKIPPED_REMOTE_FORBIDDEN"
	SkippedRemoteOtherError  Status = "SKIPPED_REMOTE_OTHER_ERROR"
	FailedTransfer           Status = "FAILED_TRANSFER"
	FailedIntegrityMismatch  Status = "FAILED_INTEGRITY_MISMATCH"
	FailedChecksumReadError  Status = "FAILED_CHECKSUM_READ_ERROR"
	FailedLocalResource      Status = "FAILED_LOCAL_RESOURCE"
)

// AllStatuses lists every terminal status in summary display order.
var AllStatuses = []Status{
	SuccessVerified,
	SkippedLocalVerified,
	SkippedExtensionFiltered,
	SkippedRemoteNotFound,
	SkippedRemoteForbidden,
	SkippedRemoteOtherError,
	FailedTransfer,
	FailedIntegrityMismatch,
	FailedChecksumReadError,
	FailedLocalResource,
}

// IsFailure reports whether s records an entry the run could not satisfy.
// Remote-existence skips are not failures here; they are still retry-set
// candidates because the remote side may heal.
func (s Status) IsFailure() bool {
	switch s {
	case FailedTransfer, FailedIntegrityMismatch, FailedChecksumReadError, FailedLocalResource:
		return true
	}

	return false
}

// IsSatisfied reports whether the entry ended with a verified local replica,
// either freshly transferred or already present.
func (s Status) IsSatisfied() bool {
	return s == SuccessVerified || s == SkippedLocalVerified
}

// Record is one log line. Size is negative when unknown; URI, path, and
// digest fields are empty when they were never computed and are written with
// an N/A sentinel.
type Record struct {
	Timestamp   time.Time
	Status      Status
	UUID        string
	Filename    string
	RemoteURI   string
	LocalPath   string
	ExpectedMD5 string
	ActualMD5   string
	Size        int64
	Message     string
}
