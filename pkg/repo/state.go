package repo

import "fmt"

// PerformPermissionCheck validates that the caller may perform an operation
// requiring the given permission level on the resource, taking the
// resource's lifecycle state into account.
//
// The check is two-tiered:
//
//  1. REVOKED resources hide their existence. Callers without ADMINISTRATE
//     (and without the global administrator role) get NotFound, never
//     Forbidden, so a soft-deleted resource is indistinguishable from one
//     that never existed.
//  2. FIXED resources are write-locked. A mutating request (WRITE or above)
//     needs ADMINISTRATE; read-level requests still only need READ.
//
// Outside those two cases it is a plain monotone comparison against the
// caller's effective permission, failing with Forbidden.
//
// GONE resources are expected to be absent from storage entirely; callers
// that still hold one are treated like the revoked case.
func PerformPermissionCheck(resource *Resource, required Permission, caller Agent) error {
	effective := EffectivePermission(resource, caller)

	switch {
	case resource.State == StateRevoked || resource.State == StateGone:
		if !effective.Satisfies(PermissionAdministrate) {
			return NewPathError(ErrNotFound, "resource not found", resource.ID)
		}

	case resource.State == StateFixed && required.Satisfies(PermissionWrite):
		if !effective.Satisfies(PermissionAdministrate) {
			return NewPathError(ErrForbidden,
				fmt.Sprintf("resource is fixed, %s requires ADMINISTRATE", required), resource.ID)
		}

	default:
		if !effective.Satisfies(required) {
			return NewPathError(ErrForbidden,
				fmt.Sprintf("insufficient permission: have %s, need %s", effective, required), resource.ID)
		}
	}

	return nil
}

// CanTransition reports whether the lifecycle transition from one state to
// another is legal, regardless of who requests it.
//
// Legal transitions:
//   - VOLATILE → FIXED
//   - VOLATILE → REVOKED, FIXED → REVOKED
//   - REVOKED → GONE (privileged purge, one-way)
//
// Nothing ever moves back to VOLATILE, and GONE is terminal.
func CanTransition(from, to State) bool {
	switch from {
	case StateVolatile:
		return to == StateFixed || to == StateRevoked
	case StateFixed:
		return to == StateRevoked
	case StateRevoked:
		return to == StateGone
	default:
		return false
	}
}

// CheckTransition validates both the legality of a state transition and the
// caller's authority to perform it.
//
// Every transition requires effective ADMINISTRATE. The permission check
// runs through PerformPermissionCheck first so the revoked-hides-existence
// rule applies to transition attempts as well.
func CheckTransition(resource *Resource, to State, caller Agent) error {
	if err := PerformPermissionCheck(resource, PermissionAdministrate, caller); err != nil {
		return err
	}

	if !CanTransition(resource.State, to) {
		return NewPathError(ErrBadArgument,
			fmt.Sprintf("illegal state transition %s -> %s", resource.State, to), resource.ID)
	}

	return nil
}
