package patch

import (
	"fmt"
	"time"

	"github.com/marmos91/baserepo/pkg/repo"
)

// Engine applies patches to resources under field-level authorization and
// locked-field invariants.
//
// The engine is stateless between calls and safe for concurrent use; all
// per-call state lives on the stack and in the working copy.
type Engine struct {
	policies PolicyTable
}

// NewEngine creates an engine with the default resource policy table.
func NewEngine() *Engine {
	return &Engine{policies: DefaultPolicies()}
}

// NewEngineWithPolicies creates an engine with a custom policy table.
// Used by tests and by callers that patch entity types with different
// field rules.
func NewEngineWithPolicies(policies PolicyTable) *Engine {
	return &Engine{policies: policies}
}

// Apply applies a patch to a resource.
//
// The algorithm is strictly ordered and all-or-nothing:
//
//  1. The supplied ETag is validated against the current resource state.
//     A mismatch fails fast without inspecting the patch at all.
//  2. Every operation is authorized against the field policy table before
//     any mutation is attempted. One forbidden or under-privileged
//     operation rejects the whole patch.
//  3. The locked-field hash (id + creation date) is snapshotted, the patch
//     is applied to a working copy, and the hash is recomputed. A
//     difference means an immutable field was reached through an unguarded
//     path (array shifting, move targets, ...) and the patch is rejected
//     with Unprocessable. The input resource is never modified.
//  4. The patched copy must still hold an ACL entry. The ACL is never empty
//     after creation; a patch that drains it (removing the member, replacing
//     it with an empty array, removing entries one by one) would lock every
//     non-global-administrator out for good, so it is rejected with
//     Unprocessable.
//
// On success the returned resource is the patched working copy with a fresh
// LastUpdate; the caller persists it and requests one audit version
// increment.
func (e *Engine) Apply(resource *repo.Resource, ops []Operation, caller repo.Agent, suppliedEtag string) (*repo.Resource, error) {
	if err := repo.CheckPrecondition(suppliedEtag, resource); err != nil {
		return nil, err
	}

	if len(ops) == 0 {
		return nil, repo.NewPathError(repo.ErrBadArgument, "empty patch", resource.ID)
	}

	if err := e.authorize(resource, ops, caller); err != nil {
		return nil, err
	}

	lockedBefore := repo.LockedFieldHash(resource)

	doc, err := FromResource(resource)
	if err != nil {
		return nil, err
	}

	for _, op := range ops {
		if err := op.apply(doc); err != nil {
			return nil, err
		}
	}

	patched, err := doc.ToResource()
	if err != nil {
		return nil, err
	}

	if repo.LockedFieldHash(patched) != lockedBefore {
		return nil, repo.NewPathError(repo.ErrUnprocessable,
			"patch violates locked-field invariant (id/creation date changed)", resource.ID)
	}

	if len(patched.ACL) == 0 {
		return nil, repo.NewPathError(repo.ErrUnprocessable,
			"patch must not leave the resource without an ACL entry", resource.ID)
	}

	patched.LastUpdate = time.Now()
	return patched, nil
}

// authorize validates every operation against the policy table. Validation
// is exhaustive over all operations before any mutation is attempted, so a
// rejected patch leaves no trace.
func (e *Engine) authorize(resource *repo.Resource, ops []Operation, caller repo.Agent) error {
	effective := repo.EffectivePermission(resource, caller)

	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}

		pointers := []string{op.Path}
		if op.Op == OpMove {
			// A move mutates its source as well; both ends are authorized.
			pointers = append(pointers, op.From)
		}

		for _, pointer := range pointers {
			policy, err := e.policies.resolve(pointer)
			if err != nil {
				return err
			}

			if policy == PolicyForbidden {
				return repo.NewPathError(repo.ErrForbidden,
					fmt.Sprintf("field %q must not be patched", fieldName(pointer)), pointer)
			}

			if !effective.Satisfies(policy.requiredPermission()) {
				return repo.NewPathError(repo.ErrForbidden,
					fmt.Sprintf("patching field %q requires %s permission",
						fieldName(pointer), policy.requiredPermission()), pointer)
			}
		}
	}

	return nil
}
