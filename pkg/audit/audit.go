// Package audit defines the version-history collaborator of the repository.
//
// The core never depends on the internals of the audit engine, only on the
// operations below: capture a snapshot after a successful mutation, report
// the current version, reconstruct a historical snapshot and drop the trail
// when a resource is purged. Versions are monotonically increasing integers
// starting at 1; the core surfaces the current version to callers after
// every mutation but never generates version numbers itself.
package audit

import (
	"context"
	"time"

	"github.com/marmos91/baserepo/pkg/repo"
)

// Entry is one recorded version of a resource.
type Entry struct {
	// Version is the monotonic version number, starting at 1
	Version int64 `json:"version"`

	// Principal is the caller that performed the mutation
	Principal string `json:"principal"`

	// Timestamp is when the snapshot was captured
	Timestamp time.Time `json:"timestamp"`

	// Resource is the full state after the mutation
	Resource *repo.Resource `json:"resource"`
}

// Service records and reconstructs resource version history.
//
// Implementations must be safe for concurrent use. Capture assigns the next
// version number atomically per resource.
type Service interface {
	// Capture records the resource's current state as the next version.
	Capture(ctx context.Context, resource *repo.Resource, principal string) error

	// CurrentVersion returns the latest version number of the resource, or
	// 0 when no version has been captured.
	CurrentVersion(ctx context.Context, id string) (int64, error)

	// Trail returns a page of the resource's audit entries as a JSON array
	// (newest first). The second return value is false when the resource
	// has no trail at all.
	Trail(ctx context.Context, id string, page, size int) (string, bool, error)

	// ResourceByVersion reconstructs the resource state at the given
	// version. Returns NotFound when the version doesn't exist.
	ResourceByVersion(ctx context.Context, id string, version int64) (*repo.Resource, error)

	// DeleteTrail removes all recorded versions of the resource. Used by
	// the purge operation; deleting a missing trail is not an error.
	DeleteTrail(ctx context.Context, id string) error
}

// pageBounds clamps a (page, size) window to a trail length, newest first.
func pageBounds(length, page, size int) (int, int) {
	if size <= 0 {
		return 0, length
	}
	from := page * size
	if from > length {
		from = length
	}
	to := from + size
	if to > length {
		to = length
	}
	return from, to
}
