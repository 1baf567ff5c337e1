package repo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ComputeEtag derives the optimistic-concurrency token for a resource.
//
// The token is a SHA-256 digest over the JSON encoding of the resource's
// full mutable state, so any semantic change (metadata, ACL, state,
// timestamps) produces a different token. Struct field order makes the JSON
// encoding deterministic.
func ComputeEtag(resource *Resource) string {
	encoded, err := json.Marshal(resource)
	if err != nil {
		// A Resource contains only JSON-encodable fields; this cannot
		// happen for well-formed values. Degrade to a timestamp token so a
		// caller can still never match it accidentally.
		return fmt.Sprintf("invalid-%d", time.Now().UnixNano())
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// CheckPrecondition validates a supplied ETag against the resource's current
// state.
//
// A missing token fails with PreconditionRequired; a present but mismatched
// token fails with PreconditionFailed. Every mutating operation (patch,
// state transition, content delete) must pass this guard before touching
// persisted state: two concurrent mutations are serialized logically by
// requiring each to present the token produced by the previous successful
// one.
func CheckPrecondition(supplied string, resource *Resource) error {
	if supplied == "" {
		return NewPathError(ErrPreconditionRequired, "ETag required for modification", resource.ID)
	}

	if supplied != ComputeEtag(resource) {
		return NewPathError(ErrPreconditionFailed, "ETag does not match current resource state", resource.ID)
	}

	return nil
}

// LockedFieldHash reduces the resource's locked fields (the immutable
// identifier and the creation date) to a deterministic digest.
//
// The patch engine snapshots this value before applying a patch and
// recomputes it afterwards; a difference means the patch reached an
// immutable field through a path the per-field policy table does not
// directly name, and the whole patch is rejected.
func LockedFieldHash(resource *Resource) string {
	sum := sha256.Sum256([]byte(resource.ID + "|" + resource.Created.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}
