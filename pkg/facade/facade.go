// Package facade exposes the resource mutation engine: permission-checked
// create/read/update/delete of resources and their content, tying together
// the state machine, the ETag guard, the patch engine, the content service
// and the persistence/audit collaborators.
//
// The facade is operation-scoped and stateless between calls: every call
// reloads what it needs from the store, performs its checks, mutates, and
// persists. Logical serialization of concurrent mutations happens solely
// through the ETag precondition; a losing writer gets PreconditionFailed
// and retries by re-reading.
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/baserepo/internal/logger"
	"github.com/marmos91/baserepo/pkg/audit"
	"github.com/marmos91/baserepo/pkg/content"
	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/repo/patch"
	"github.com/marmos91/baserepo/pkg/store"
)

// Repository is the resource mutation facade.
type Repository struct {
	store   store.Store
	audit   audit.Service
	content *content.Service
	patcher *patch.Engine
}

// New creates the facade on its collaborators.
func New(s store.Store, a audit.Service, c *content.Service) *Repository {
	return &Repository{
		store:   s,
		audit:   a,
		content: c,
		patcher: patch.NewEngine(),
	}
}

// Content exposes the content addressing service for callers that need the
// raw outcomes (the CLI, HTTP handlers).
func (r *Repository) Content() *content.Service {
	return r.content
}

// MutationResult carries the state a caller needs after any successful
// operation: the resource, its fresh ETag and the current audit version.
type MutationResult struct {
	Resource *repo.Resource
	Etag     string
	Version  int64
}

func (r *Repository) result(ctx context.Context, resource *repo.Resource) *MutationResult {
	version, err := r.audit.CurrentVersion(ctx, resource.ID)
	if err != nil {
		// The mutation already succeeded; a version read failure only
		// degrades the response header, it must not fail the call.
		logger.Warn("failed to read audit version for %s: %v", resource.ID, err)
	}

	return &MutationResult{
		Resource: resource,
		Etag:     repo.ComputeEtag(resource),
		Version:  version,
	}
}

// Create registers a new resource.
//
// The id is assigned exactly once: a caller-supplied id is kept if free
// (AlreadyExists otherwise), an empty id gets a fresh UUID. The resource
// starts VOLATILE and the creator always ends up with an ADMINISTRATE entry
// in the ACL, so the ACL is never empty after creation.
func (r *Repository) Create(ctx context.Context, resource *repo.Resource, caller repo.Agent) (*MutationResult, error) {
	if caller.Principal == "" {
		return nil, repo.NewError(repo.ErrBadArgument, "caller principal is required")
	}
	if resource == nil || resource.Title == "" {
		return nil, repo.NewError(repo.ErrBadArgument, "resource title is required")
	}

	created := resource.Clone()

	if created.ID == "" {
		created.ID = uuid.NewString()
	} else {
		_, err := r.store.FindResource(ctx, created.ID)
		if err == nil {
			return nil, repo.NewPathError(repo.ErrAlreadyExists, "resource id already in use", created.ID)
		}
		if !repo.IsCode(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now()
	created.State = repo.StateVolatile
	created.Created = now
	created.LastUpdate = now
	ensureCreatorGrant(created, caller.Principal)

	if err := r.store.SaveResource(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to persist resource %s: %w", created.ID, err)
	}
	if err := r.audit.Capture(ctx, created, caller.Principal); err != nil {
		logger.Warn("failed to capture audit entry for %s: %v", created.ID, err)
	}

	logger.Info("created resource %s (caller %s)", created.ID, caller.Principal)
	return r.result(ctx, created), nil
}

// Get returns a resource after a READ-level permission check.
func (r *Repository) Get(ctx context.Context, id string, caller repo.Agent) (*MutationResult, error) {
	resource, err := r.load(ctx, id, repo.PermissionRead, caller)
	if err != nil {
		return nil, err
	}
	return r.result(ctx, resource), nil
}

// GetVersion returns a historical snapshot of the resource.
//
// Access is checked against the current state, not the snapshot: a caller
// locked out today must not read yesterday's ACL to get back in.
func (r *Repository) GetVersion(ctx context.Context, id string, version int64, caller repo.Agent) (*MutationResult, error) {
	if _, err := r.load(ctx, id, repo.PermissionRead, caller); err != nil {
		return nil, err
	}

	snapshot, err := r.audit.ResourceByVersion(ctx, id, version)
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Resource: snapshot,
		Etag:     repo.ComputeEtag(snapshot),
		Version:  version,
	}, nil
}

// Patch applies a secured patch to the resource.
//
// The resource-level WRITE check runs first (so FIXED resources demand
// ADMINISTRATE and REVOKED ones hide); the engine then enforces the ETag
// precondition and the per-field policies.
func (r *Repository) Patch(ctx context.Context, id string, ops []patch.Operation, caller repo.Agent, suppliedEtag string) (*MutationResult, error) {
	resource, err := r.load(ctx, id, repo.PermissionWrite, caller)
	if err != nil {
		return nil, err
	}

	patched, err := r.patcher.Apply(resource, ops, caller, suppliedEtag)
	if err != nil {
		return nil, err
	}

	if err := r.store.SaveResource(ctx, patched); err != nil {
		return nil, fmt.Errorf("failed to persist resource %s: %w", id, err)
	}
	if err := r.audit.Capture(ctx, patched, caller.Principal); err != nil {
		logger.Warn("failed to capture audit entry for %s: %v", id, err)
	}

	return r.result(ctx, patched), nil
}

// Fix transitions a resource from VOLATILE to FIXED, locking its content
// and metadata against non-administrator writes.
func (r *Repository) Fix(ctx context.Context, id string, caller repo.Agent, suppliedEtag string) (*MutationResult, error) {
	return r.transition(ctx, id, repo.StateFixed, caller, suppliedEtag)
}

// Revoke soft-deletes a resource. From then on it reports NotFound to
// everyone below ADMINISTRATE.
func (r *Repository) Revoke(ctx context.Context, id string, caller repo.Agent, suppliedEtag string) (*MutationResult, error) {
	return r.transition(ctx, id, repo.StateRevoked, caller, suppliedEtag)
}

func (r *Repository) transition(ctx context.Context, id string, to repo.State, caller repo.Agent, suppliedEtag string) (*MutationResult, error) {
	resource, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := repo.CheckTransition(resource, to, caller); err != nil {
		return nil, err
	}
	if err := repo.CheckPrecondition(suppliedEtag, resource); err != nil {
		return nil, err
	}

	resource.State = to
	resource.LastUpdate = time.Now()

	if err := r.store.SaveResource(ctx, resource); err != nil {
		return nil, fmt.Errorf("failed to persist resource %s: %w", id, err)
	}
	if err := r.audit.Capture(ctx, resource, caller.Principal); err != nil {
		logger.Warn("failed to capture audit entry for %s: %v", id, err)
	}

	logger.Info("resource %s transitioned to %s (caller %s)", id, to, caller.Principal)
	return r.result(ctx, resource), nil
}

// Purge permanently removes a REVOKED resource: metadata, locally stored
// content artifacts and the audit trail. This is the only path into the
// terminal GONE state, it is one-way, and it is reserved for holders of the
// global administrator role. Non-administrators get NotFound, consistent
// with the revoked-hides-existence rule.
func (r *Repository) Purge(ctx context.Context, id string, caller repo.Agent, suppliedEtag string) error {
	resource, err := r.find(ctx, id)
	if err != nil {
		return err
	}

	if !caller.Administrator {
		return repo.NewPathError(repo.ErrNotFound, "resource not found", id)
	}
	if resource.State != repo.StateRevoked {
		return repo.NewPathError(repo.ErrBadArgument,
			fmt.Sprintf("illegal state transition %s -> %s", resource.State, repo.StateGone), id)
	}
	if err := repo.CheckPrecondition(suppliedEtag, resource); err != nil {
		return err
	}

	// Content first: each delete removes the metadata row and then the
	// local artifact, so an interrupted purge leaves a consistent subset.
	items, err := r.store.ListContentItems(ctx, id, "")
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := r.content.Delete(ctx, resource, item.Path); err != nil {
			return err
		}
	}

	if err := r.store.DeleteResource(ctx, id); err != nil {
		return err
	}
	if err := r.audit.DeleteTrail(ctx, id); err != nil {
		logger.Warn("failed to delete audit trail for %s: %v", id, err)
	}

	logger.Info("purged resource %s (caller %s)", id, caller.Principal)
	return nil
}

// PutContent uploads or registers content under the resource.
func (r *Repository) PutContent(ctx context.Context, id, rawPath string, req content.PutRequest, caller repo.Agent) (*repo.ContentItem, error) {
	resource, err := r.load(ctx, id, repo.PermissionWrite, caller)
	if err != nil {
		return nil, err
	}
	return r.content.Put(ctx, resource, rawPath, req, caller)
}

// GetContent resolves content for reading.
func (r *Repository) GetContent(ctx context.Context, id, rawPath string, caller repo.Agent) (*content.GetResult, error) {
	resource, err := r.load(ctx, id, repo.PermissionRead, caller)
	if err != nil {
		return nil, err
	}
	return r.content.Get(ctx, resource, rawPath)
}

// ListContent lists the resource's content items, optionally filtered by
// tag.
func (r *Repository) ListContent(ctx context.Context, id, tag string, caller repo.Agent) ([]*repo.ContentItem, error) {
	resource, err := r.load(ctx, id, repo.PermissionRead, caller)
	if err != nil {
		return nil, err
	}
	return r.content.List(ctx, resource, tag)
}

// DeleteContent removes a content item. Like every destructive mutation it
// demands the resource's current ETag.
func (r *Repository) DeleteContent(ctx context.Context, id, rawPath string, caller repo.Agent, suppliedEtag string) error {
	resource, err := r.load(ctx, id, repo.PermissionWrite, caller)
	if err != nil {
		return err
	}
	if err := repo.CheckPrecondition(suppliedEtag, resource); err != nil {
		return err
	}
	return r.content.Delete(ctx, resource, rawPath)
}

// Trail returns a page of the resource's audit trail as JSON (newest
// first).
func (r *Repository) Trail(ctx context.Context, id string, page, size int, caller repo.Agent) (string, error) {
	if _, err := r.load(ctx, id, repo.PermissionRead, caller); err != nil {
		return "", err
	}

	trail, found, err := r.audit.Trail(ctx, id, page, size)
	if err != nil {
		return "", err
	}
	if !found {
		return "", repo.NewPathError(repo.ErrNotFound, "no audit trail", id)
	}

	return trail, nil
}

// load fetches a resource and runs the state-aware permission check.
func (r *Repository) load(ctx context.Context, id string, required repo.Permission, caller repo.Agent) (*repo.Resource, error) {
	resource, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := repo.PerformPermissionCheck(resource, required, caller); err != nil {
		return nil, err
	}
	return resource, nil
}

func (r *Repository) find(ctx context.Context, id string) (*repo.Resource, error) {
	if id == "" {
		return nil, repo.NewError(repo.ErrBadArgument, "resource id is required")
	}
	return r.store.FindResource(ctx, id)
}

// ensureCreatorGrant guarantees the creator holds ADMINISTRATE, raising an
// existing lower grant rather than duplicating the entry.
func ensureCreatorGrant(resource *repo.Resource, principal string) {
	for i, entry := range resource.ACL {
		if entry.SID == principal {
			if entry.Permission < repo.PermissionAdministrate {
				resource.ACL[i].Permission = repo.PermissionAdministrate
			}
			return
		}
	}
	resource.ACL = append(resource.ACL, repo.AclEntry{
		SID:        principal,
		Permission: repo.PermissionAdministrate,
	})
}
