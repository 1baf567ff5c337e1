package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/baserepo/pkg/repo"
)

// MemoryService is an in-memory audit log for tests and ephemeral
// deployments.
type MemoryService struct {
	mu sync.RWMutex

	// trails maps resource id to its entries, oldest first
	trails map[string][]Entry
}

// NewMemoryService creates an empty in-memory audit log.
func NewMemoryService() *MemoryService {
	return &MemoryService{trails: make(map[string][]Entry)}
}

func (s *MemoryService) Capture(ctx context.Context, resource *repo.Resource, principal string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trail := s.trails[resource.ID]
	s.trails[resource.ID] = append(trail, Entry{
		Version:   int64(len(trail)) + 1,
		Principal: principal,
		Timestamp: time.Now(),
		Resource:  resource.Clone(),
	})

	return nil
}

func (s *MemoryService) CurrentVersion(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.trails[id])), nil
}

func (s *MemoryService) Trail(ctx context.Context, id string, page, size int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	trail, ok := s.trails[id]
	if !ok {
		return "", false, nil
	}

	// Newest first.
	reversed := make([]Entry, len(trail))
	for i, entry := range trail {
		reversed[len(trail)-1-i] = entry
	}

	from, to := pageBounds(len(reversed), page, size)
	encoded, err := json.Marshal(reversed[from:to])
	if err != nil {
		return "", false, fmt.Errorf("failed to encode audit trail: %w", err)
	}

	return string(encoded), true, nil
}

func (s *MemoryService) ResourceByVersion(ctx context.Context, id string, version int64) (*repo.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := s.trails[id]
	if version < 1 || version > int64(len(trail)) {
		return nil, repo.NewPathError(repo.ErrNotFound,
			fmt.Sprintf("no version %d", version), id)
	}

	return trail[version-1].Resource.Clone(), nil
}

func (s *MemoryService) DeleteTrail(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.trails, id)
	return nil
}
