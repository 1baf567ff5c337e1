// Package versioning defines the pluggable physical-storage boundary of the
// content layer.
//
// A versioning service maps (resource id, logical path, version) to physical
// bytes. The content service above it decides force/overwrite semantics,
// digests and media types; implementations here only move bytes and report
// where they ended up.
package versioning

import (
	"context"
	"io"
	"time"
)

// Options carries implementation-specific parameters. The content service
// sets OptionVersion to a fresh identifier per write so overwrites land on a
// new physical location and the previous artifact survives until the new
// record is durably persisted.
type Options map[string]string

// OptionVersion is the per-write version identifier option key.
const OptionVersion = "version"

// Info describes one stored artifact.
type Info struct {
	ResourceID string
	Path       string
	VersionID  string
	URI        string
	Size       int64
	Timestamp  time.Time
}

// Service writes and reads physical content.
//
// Implementations must be safe for concurrent use. Write streams the reader
// to the destination exactly once and must not leave a partial artifact
// behind on failure.
type Service interface {
	// Configure validates the service's settings and prepares the backend
	// (creates the base directory, verifies bucket access, ...).
	Configure(ctx context.Context) error

	// Write streams content to the physical location derived from the
	// resource id, the logical path and the version option. Returns the
	// content locator URI of the stored artifact.
	Write(ctx context.Context, resourceID, callerID, path string, r io.Reader, opts Options) (string, error)

	// Read streams the artifact for (resource id, path, version) into w.
	Read(ctx context.Context, resourceID, callerID, path, versionID string, w io.Writer, opts Options) error

	// Info returns metadata about a stored artifact without reading it.
	Info(ctx context.Context, resourceID, path, versionID string, opts Options) (*Info, error)
}
