// Package store defines the persistence boundary of the repository.
//
// The core treats storage as an opaque collaborator with single-row
// read-then-write semantics: there is no distributed-transaction guarantee
// between this store and the physical content store. Implementations must
// be safe for concurrent use; logical serialization of mutations is the job
// of the ETag precondition in the core, not of the store.
package store

import (
	"context"

	"github.com/marmos91/baserepo/pkg/repo"
)

// Page selects a window of a listing. Number is zero-based.
type Page struct {
	Number int
	Size   int
}

// Slice applies the page to a total length and returns the [from, to)
// bounds, clamped to the valid range.
func (p Page) Slice(length int) (int, int) {
	if p.Size <= 0 {
		return 0, length
	}

	from := p.Number * p.Size
	if from > length {
		from = length
	}
	to := from + p.Size
	if to > length {
		to = length
	}

	return from, to
}

// Store persists resources and their content items.
//
// All Find operations return a NotFound RepositoryError when the record
// does not exist. Save operations upsert. Implementations return deep
// copies (or freshly decoded values), never aliases into internal state.
type Store interface {
	// SaveResource inserts or updates a resource record.
	SaveResource(ctx context.Context, resource *repo.Resource) error

	// FindResource returns the resource with the given id.
	FindResource(ctx context.Context, id string) (*repo.Resource, error)

	// DeleteResource removes a resource and cascades to all of its content
	// items.
	DeleteResource(ctx context.Context, id string) error

	// ListResources returns a page of all resources, ordered by id.
	ListResources(ctx context.Context, page Page) ([]*repo.Resource, error)

	// SaveContentItem inserts or updates a content item record, keyed by
	// (resource id, normalized path).
	SaveContentItem(ctx context.Context, item *repo.ContentItem) error

	// FindContentItem returns the content item at (resource id, path).
	FindContentItem(ctx context.Context, resourceID, path string) (*repo.ContentItem, error)

	// ListContentItems returns all content items of a resource ordered by
	// path, optionally filtered by tag (empty tag means no filter).
	ListContentItems(ctx context.Context, resourceID, tag string) ([]*repo.ContentItem, error)

	// DeleteContentItem removes the content item at (resource id, path).
	DeleteContentItem(ctx context.Context, resourceID, path string) error

	// Close releases store resources. The store must not be used afterwards.
	Close() error
}
