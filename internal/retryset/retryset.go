// Package retryset rebuilds a catalog from the failure subset of a run log,
// closing the reconciliation loop.
package retryset

import (
	"errors"
	"strings"

	"github.com/italolelis/manifest_mirror/internal/catalog"
	"github.com/italolelis/manifest_mirror/internal/outcome"
)

// ErrNothingToRetry reports that no record matched the retry statuses. It is
// a valid terminal outcome, not a failure.
var ErrNothingToRetry = errors.New("no log records matched the retry statuses")

// DefaultStatuses is the retry-worthy set: every failure plus the remote
// existence skips, which may heal on the remote side. Extension-filter and
// local-verified skips are intentional exclusions and never re-enter a
// catalog.
var DefaultStatuses = []outcome.Status{
	outcome.FailedTransfer,
	outcome.FailedIntegrityMismatch,
	outcome.FailedChecksumReadError,
	outcome.FailedLocalResource,
	outcome.SkippedRemoteNotFound,
	outcome.SkippedRemoteForbidden,
	outcome.SkippedRemoteOtherError,
}

// Generate filters records down to the given statuses and rebuilds catalog
// entries from them, preserving log order. Size is not recoverable from the
// log and is marked unknown; State records provenance as retry_<status>.
func Generate(records []outcome.Record, statuses []outcome.Status) ([]catalog.Entry, error) {
	retry := make(map[outcome.Status]bool, len(statuses))
	for _, s := range statuses {
		retry[s] = true
	}

	var entries []catalog.Entry

	for _, rec := range records {
		if !retry[rec.Status] {
			continue
		}

		entries = append(entries, catalog.Entry{
			ID:       rec.UUID,
			Filename: rec.Filename,
			Checksum: rec.ExpectedMD5,
			Size:     catalog.SizeUnknown,
			State:    "retry_" + strings.ToLower(string(rec.Status)),
		})
	}

	if len(entries) == 0 {
		return nil, ErrNothingToRetry
	}

	return entries, nil
}
