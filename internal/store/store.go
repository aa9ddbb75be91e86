// Package store defines the object-store contract the reconciliation engine
// depends on. Implementations live in subpackages. Every remote condition is
// classified at this boundary into a closed set of kinds, so downstream
// logic switches on a finite enumeration and never on provider error
// strings.
package store

import (
	"context"
	"time"
)

// Locator names one remote object. ID and Name come from the catalog entry;
// Bucket is run configuration. The two together fix the object key, so a
// locator is derivable and never stored.
type Locator struct {
	Bucket string
	ID     string
	Name   string
}

// Key returns the object key under the bucket.
func (l Locator) Key() string {
	return l.ID + "/" + l.Name
}

// URI returns the canonical form used in logs and outcome records.
func (l Locator) URI() string {
	return "s3://" + l.Bucket + "/" + l.Key()
}

func (l Locator) String() string {
	return l.URI()
}

// ProbeStatus classifies a metadata-only existence check.
type ProbeStatus int

const (
	ProbePresent ProbeStatus = iota
	ProbeNotFound
	ProbeForbidden
	ProbeOtherError
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbePresent:
		return "present"
	case ProbeNotFound:
		return "not_found"
	case ProbeForbidden:
		return "forbidden"
	case ProbeOtherError:
		return "other_error"
	default:
		return "unknown"
	}
}

// ProbeResult carries the classification plus the raw diagnostic string when
// the status is ProbeOtherError.
type ProbeResult struct {
	Status  ProbeStatus
	Message string
}

// ObjectInfo describes one object returned by a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Client is the store contract: a metadata-only existence check, a
// full-content fetch to a local path, and a prefix listing for discovery.
//
// Probe never fails on remote conditions; they are folded into the
// ProbeResult. Its error return is non-nil only when ctx ends first, so a
// cancelled run is distinguishable from a classified remote answer. Fetch
// and List return *RemoteError for conditions attributed to the store or the
// network, and Fetch returns *LocalError for conditions retrying cannot fix.
type Client interface {
	Probe(ctx context.Context, loc Locator) (ProbeResult, error)
	Fetch(ctx context.Context, loc Locator, targetPath string) (int64, error)
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
