package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
)

// RunRepository is a thread-safe in-memory implementation of domain.RunRepository.
// At most limit runs are kept per workspace; older ones are dropped.
type RunRepository struct {
	mu    sync.RWMutex
	runs  map[string][]*model.Run
	limit int
}

var _ domain.RunRepository = (*RunRepository)(nil)

// DefaultRunLimit is the per-workspace history size of NewRunRepository.
const DefaultRunLimit = 100

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[string][]*model.Run), limit: DefaultRunLimit}
}

func copyRun(run *model.Run) *model.Run {
	cp := *run
	cp.Args = append([]string(nil), run.Args...)
	return &cp
}

func (r *RunRepository) Create(_ context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = "run-" + uuid.NewString()
	}
	list := append(r.runs[run.WorkspaceID], copyRun(run))
	if r.limit > 0 && len(list) > r.limit {
		list = list[len(list)-r.limit:]
	}
	r.runs[run.WorkspaceID] = list
	return nil
}

// ListByWorkspace returns runs for a workspace, newest first.
func (r *RunRepository) ListByWorkspace(_ context.Context, workspaceID string) ([]*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.runs[workspaceID]
	out := make([]*model.Run, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, copyRun(list[i]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *RunRepository) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, workspaceID)
	return nil
}
