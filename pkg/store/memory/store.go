// Package memory implements an in-memory Store.
//
// Intended for tests and ephemeral deployments: nothing survives a process
// restart. All operations are protected by a single read-write mutex, which
// is simple and correct; the store is not a throughput bottleneck for the
// operation-scoped core.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/store"
)

// MemoryStore implements store.Store backed by maps.
type MemoryStore struct {
	mu sync.RWMutex

	// resources maps resource id to record
	resources map[string]*repo.Resource

	// items maps resource id to path to record
	items map[string]map[string]*repo.ContentItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[string]*repo.Resource),
		items:     make(map[string]map[string]*repo.ContentItem),
	}
}

func (s *MemoryStore) SaveResource(ctx context.Context, resource *repo.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources[resource.ID] = resource.Clone()
	return nil
}

func (s *MemoryStore) FindResource(ctx context.Context, id string) (*repo.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return nil, repo.NewPathError(repo.ErrNotFound, "resource not found", id)
	}

	return resource.Clone(), nil
}

func (s *MemoryStore) DeleteResource(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return repo.NewPathError(repo.ErrNotFound, "resource not found", id)
	}

	delete(s.resources, id)
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ListResources(ctx context.Context, page store.Page) ([]*repo.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	from, to := page.Slice(len(ids))
	result := make([]*repo.Resource, 0, to-from)
	for _, id := range ids[from:to] {
		result = append(result, s.resources[id].Clone())
	}

	return result, nil
}

func (s *MemoryStore) SaveContentItem(ctx context.Context, item *repo.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byPath, ok := s.items[item.ResourceID]
	if !ok {
		byPath = make(map[string]*repo.ContentItem)
		s.items[item.ResourceID] = byPath
	}

	byPath[item.Path] = cloneItem(item)
	return nil
}

func (s *MemoryStore) FindContentItem(ctx context.Context, resourceID, path string) (*repo.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[resourceID][path]
	if !ok {
		return nil, repo.NewPathError(repo.ErrNotFound, "content not found", resourceID+"/"+path)
	}

	return cloneItem(item), nil
}

func (s *MemoryStore) ListContentItems(ctx context.Context, resourceID, tag string) ([]*repo.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.items[resourceID]))
	for path := range s.items[resourceID] {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	result := make([]*repo.ContentItem, 0, len(paths))
	for _, path := range paths {
		item := s.items[resourceID][path]
		if tag != "" && !item.HasTag(tag) {
			continue
		}
		result = append(result, cloneItem(item))
	}

	return result, nil
}

func (s *MemoryStore) DeleteContentItem(ctx context.Context, resourceID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[resourceID][path]; !ok {
		return repo.NewPathError(repo.ErrNotFound, "content not found", resourceID+"/"+path)
	}

	delete(s.items[resourceID], path)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneItem(item *repo.ContentItem) *repo.ContentItem {
	clone := *item

	if item.Metadata != nil {
		clone.Metadata = make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			clone.Metadata[k] = v
		}
	}
	if item.Tags != nil {
		clone.Tags = make([]string, len(item.Tags))
		copy(clone.Tags, item.Tags)
	}

	return &clone
}
