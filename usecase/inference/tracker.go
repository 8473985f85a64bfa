package inference

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kompox/sandboxops/domain/model"
)

type pull struct {
	progress *Progress
	cancel   context.CancelFunc
}

// tracker holds the progress of model downloads, one goroutine per model.
type tracker struct {
	mu    sync.Mutex
	pulls map[string]*pull
	wg    sync.WaitGroup
}

func newTracker() *tracker {
	return &tracker{pulls: map[string]*pull{}}
}

// start registers a new download unless one is active for name.
func (t *tracker) start(name string, cancel context.CancelFunc, now time.Time) (*pull, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.pulls[name]; ok && cur.progress.Active() {
		return nil, model.ErrModelDownloadInProgress
	}
	p := &pull{
		progress: &Progress{
			Model:     name,
			State:     PullStarting,
			Message:   "Starting download...",
			StartedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
	t.pulls[name] = p
	t.wg.Add(1)
	return p, nil
}

// update applies fn to p if it is still the tracked download for its model.
func (t *tracker) update(p *pull, fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pulls[p.progress.Model] == p {
		fn(p.progress)
	}
}

func (t *tracker) done() { t.wg.Done() }

func (t *tracker) get(name string) (*Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pulls[name]
	if !ok {
		return nil, false
	}
	return p.progress.clone(), true
}

func (t *tracker) all() []*Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Progress, 0, len(t.pulls))
	for _, p := range t.pulls {
		out = append(out, p.progress.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// remove drops the tracked state of name and cancels it if still running.
func (t *tracker) remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pulls[name]
	if !ok {
		return false
	}
	p.cancel()
	delete(t.pulls, name)
	return true
}

// shutdown cancels every running download and waits for the goroutines.
func (t *tracker) shutdown(ctx context.Context) error {
	t.mu.Lock()
	for _, p := range t.pulls {
		p.cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
