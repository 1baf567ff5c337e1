// Package repo defines the core data model of the repository: resources,
// content items, ACLs and the permission/lifecycle rules that govern them.
//
// The package is storage-agnostic. Persistence, auditing and physical
// content storage are injected collaborators (see pkg/store, pkg/audit and
// pkg/content); everything here operates on in-memory values and returns
// RepositoryError for every rule violation.
package repo

import (
	"time"
)

// State is the lifecycle state of a resource.
//
// Lifecycle:
//
//	VOLATILE ──fix──▶ FIXED
//	    │               │
//	    └───revoke──────┴──▶ REVOKED ──purge──▶ GONE
//
// No transition ever returns a resource to VOLATILE, and REVOKED/GONE are
// never left through a patch.
type State string

const (
	// StateVolatile is the initial state: metadata and content fully mutable
	StateVolatile State = "VOLATILE"

	// StateFixed locks content and metadata against non-administrator writes
	StateFixed State = "FIXED"

	// StateRevoked soft-deletes the resource. Revoked resources are
	// invisible to callers without ADMINISTRATE (reads report NotFound).
	StateRevoked State = "REVOKED"

	// StateGone is terminal: metadata, content and audit trail removed
	StateGone State = "GONE"
)

// AclEntry grants a permission level to a subject (principal id or group).
type AclEntry struct {
	// SID is the subject identifier the grant applies to
	SID string `json:"sid"`

	// Permission is the granted level
	Permission Permission `json:"permission"`
}

// Agent is the already-resolved caller identity the core receives per call.
// Authentication and token validation happen outside the core.
type Agent struct {
	// Principal is the caller's principal id
	Principal string

	// Groups contains the caller's group memberships. ACL entries match
	// against the principal id and every group.
	Groups []string

	// Authorities is the caller's granted-authority set (role names)
	Authorities []string

	// Administrator is true when the caller holds the global administrator
	// role. Administrators have ADMINISTRATE on every resource, bypassing
	// ACL lookup.
	Administrator bool
}

// Subjects returns all identity claims an ACL entry may match against.
func (a Agent) Subjects() []string {
	subjects := make([]string, 0, len(a.Groups)+1)
	if a.Principal != "" {
		subjects = append(subjects, a.Principal)
	}
	return append(subjects, a.Groups...)
}

// HasAuthority reports whether the caller's authority set contains the given
// role name.
func (a Agent) HasAuthority(role string) bool {
	for _, authority := range a.Authorities {
		if authority == role {
			return true
		}
	}
	return false
}

// Resource is a metadata record with an owning ACL and lifecycle state.
//
// Invariants:
//   - ID is assigned exactly once at creation and never changes
//   - ACL is never empty after creation (the creator always receives an
//     ADMINISTRATE entry)
//   - Created never changes after creation (locked field, enforced by the
//     patch engine's before/after hash)
type Resource struct {
	// ID is the unique, immutable resource identifier
	ID string `json:"id"`

	// State is the lifecycle state (see State)
	State State `json:"state"`

	// ACL is the owning access control list
	ACL []AclEntry `json:"acl"`

	// Descriptive fields. All of them are patchable at WRITE level.
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Creators    []string `json:"creators,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`

	// EmbargoUntil is the embargo timestamp, if any. Stored and patchable;
	// enforcement is up to the outer read surface.
	EmbargoUntil *time.Time `json:"embargoUntil,omitempty"`

	// Created is the creation timestamp (locked field together with ID)
	Created time.Time `json:"created"`

	// LastUpdate is maintained by the mutation engine on every successful
	// change
	LastUpdate time.Time `json:"lastUpdate"`
}

// Clone returns a deep copy of the resource. Mutation paths operate on a
// working copy so that failed patches never leak partial state.
func (r *Resource) Clone() *Resource {
	clone := *r

	if r.ACL != nil {
		clone.ACL = make([]AclEntry, len(r.ACL))
		copy(clone.ACL, r.ACL)
	}
	if r.Creators != nil {
		clone.Creators = make([]string, len(r.Creators))
		copy(clone.Creators, r.Creators)
	}
	if r.EmbargoUntil != nil {
		embargo := *r.EmbargoUntil
		clone.EmbargoUntil = &embargo
	}

	return &clone
}

// ContentItem is one binary or external artifact attached to a resource at a
// logical path.
//
// Invariant: (ResourceID, Path) is unique among live items. Uniqueness is
// enforced at write time by the content service, not by storage alone.
type ContentItem struct {
	// ID is the unique content item identifier
	ID string `json:"id"`

	// ResourceID references the owning resource (cascade-deleted with it)
	ResourceID string `json:"resourceId"`

	// Path is the normalized relative path within the resource: no leading,
	// trailing or duplicate slashes
	Path string `json:"path"`

	// Depth is the number of path segments (derived, minimum 1)
	Depth int `json:"depth"`

	// URI locates the actual bytes. The scheme decides how reads behave:
	// "file" streams from local storage, "http"/"https" resolve to a
	// redirect, anything else is returned to the caller unresolved.
	URI string `json:"uri"`

	// MediaType is the declared or sniffed media type
	MediaType string `json:"mediaType,omitempty"`

	// Hash is the algorithm-prefixed content digest, e.g. "sha1:5d41..."
	Hash string `json:"hash,omitempty"`

	// Size is the content size in bytes
	Size int64 `json:"size"`

	// Metadata is a free-form key/value map supplied by the caller
	Metadata map[string]string `json:"metadata,omitempty"`

	// Tags is the item's tag set, usable as a soft filter on listings
	Tags []string `json:"tags,omitempty"`
}

// HasTag reports whether the item carries the given tag.
func (c *ContentItem) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
