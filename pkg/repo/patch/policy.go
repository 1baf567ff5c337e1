package patch

import (
	"strings"

	"github.com/marmos91/baserepo/pkg/repo"
)

// FieldPolicy declares who may overwrite a field through a patch.
//
// The policy table is an explicit, statically declared mapping from field
// identifier to required authority, evaluated by the engine rather than
// embedded in the entity type. This keeps the authorization rules testable
// in isolation from the resource definition.
type FieldPolicy int

const (
	// PolicyOpen places no restriction beyond the resource-level check the
	// caller already passed to reach the engine
	PolicyOpen FieldPolicy = iota

	// PolicyWrite requires effective WRITE permission on the resource
	PolicyWrite

	// PolicyAdministrate requires effective ADMINISTRATE permission
	PolicyAdministrate

	// PolicyForbidden rejects the patch regardless of caller identity.
	// Used for server-managed and immutable fields.
	PolicyForbidden
)

// PolicyTable maps top-level resource fields to their patch policy.
type PolicyTable map[string]FieldPolicy

// DefaultPolicies is the policy table for the Resource type.
//
// The identifier, creation date and lifecycle state are never patchable:
// the id and creation date are immutable by contract, and state changes go
// through the explicit transition operations so that a patch can never
// resurrect a revoked resource. LastUpdate is server-managed.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		"id":           PolicyForbidden,
		"created":      PolicyForbidden,
		"state":        PolicyForbidden,
		"lastUpdate":   PolicyForbidden,
		"acl":          PolicyAdministrate,
		"title":        PolicyWrite,
		"description":  PolicyWrite,
		"creators":     PolicyWrite,
		"publisher":    PolicyWrite,
		"embargoUntil": PolicyWrite,
	}
}

// resolve returns the policy governing a JSON pointer. Policies attach to
// top-level fields; nested pointers inherit the policy of their root field.
// Pointers outside the declared table are rejected, so a patch cannot
// smuggle unknown members into the document.
func (t PolicyTable) resolve(pointer string) (FieldPolicy, error) {
	tokens, err := parsePointer(pointer)
	if err != nil {
		return PolicyForbidden, err
	}

	field := tokens[0]
	policy, ok := t[field]
	if !ok {
		return PolicyForbidden, repo.NewPathError(repo.ErrBadArgument, "unknown field", pointer)
	}

	return policy, nil
}

// requiredPermission maps a policy to the resource permission it demands.
// PolicyForbidden has no mapping; it fails unconditionally.
func (p FieldPolicy) requiredPermission() repo.Permission {
	switch p {
	case PolicyWrite:
		return repo.PermissionWrite
	case PolicyAdministrate:
		return repo.PermissionAdministrate
	default:
		return repo.PermissionNone
	}
}

// fieldName extracts the top-level field a pointer addresses, for error
// messages.
func fieldName(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
