package workspace

import (
	"sync"

	"github.com/kompox/sandboxops/domain/model"
)

// lockSet is a set of per-workspace try-locks. The zero value is ready to use.
type lockSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// tryLock acquires the lock for id or fails with model.ErrWorkspaceBusy.
func (l *lockSet) tryLock(id string) (unlock func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]struct{}{}
	}
	if _, ok := l.held[id]; ok {
		return nil, model.ErrWorkspaceBusy
	}
	l.held[id] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, id)
		l.mu.Unlock()
	}, nil
}
