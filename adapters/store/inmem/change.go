package inmem

import (
	"context"
	"sync"

	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
)

// DefaultChangeLimit is the per-project history size of NewChangeRepository.
const DefaultChangeLimit = 100

// ChangeRepository is a thread-safe in-memory implementation of domain.ChangeRepository.
type ChangeRepository struct {
	mu      sync.RWMutex
	changes map[string][]model.FileChange
	limit   int
}

var _ domain.ChangeRepository = (*ChangeRepository)(nil)

func NewChangeRepository() *ChangeRepository {
	return &ChangeRepository{changes: make(map[string][]model.FileChange), limit: DefaultChangeLimit}
}

func (r *ChangeRepository) Create(_ context.Context, c *model.FileChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.changes[c.ProjectID], *c)
	if r.limit > 0 && len(list) > r.limit {
		list = list[len(list)-r.limit:]
	}
	r.changes[c.ProjectID] = list
	return nil
}

func (r *ChangeRepository) ListByProject(_ context.Context, projectID string, limit int) ([]*model.FileChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.changes[projectID]
	n := len(list)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*model.FileChange, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		c := list[i]
		out = append(out, &c)
	}
	return out, nil
}

func (r *ChangeRepository) DeleteByProject(_ context.Context, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.changes, projectID)
	return nil
}
