package inference

import (
	"context"
	"sync"
	"time"

	"github.com/kompox/sandboxops/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Readiness values reported by Status.
const (
	StatusOK          = "ok"
	StatusLoading     = "loading"
	StatusDownloading = "downloading"
	StatusError       = "error"
)

// snapshot is one round of requests to the inference server.
type snapshot struct {
	running bool
	version string
	models  []string
	err     error
	at      time.Time
}

// snapshotCache keeps the last snapshot for a short TTL.
type snapshotCache struct {
	mu   sync.Mutex
	last *snapshot
}

func (c *snapshotCache) get(now time.Time, ttl time.Duration) (*snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil || now.Sub(c.last.at) >= ttl {
		return nil, false
	}
	return c.last, true
}

func (c *snapshotCache) put(p *snapshot) {
	c.mu.Lock()
	c.last = p
	c.mu.Unlock()
}

func (c *snapshotCache) invalidate() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}

// StatusOutput reports server reachability and whether the configured model is usable.
type StatusOutput struct {
	Status         string    `json:"status"`
	Model          string    `json:"model"`
	ModelAvailable bool      `json:"modelAvailable"`
	Running        bool      `json:"running"`
	URL            string    `json:"url"`
	Version        string    `json:"version,omitempty"`
	Models         []string  `json:"models"`
	Download       *Progress `json:"download,omitempty"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checkedAt"`
	Cached         bool      `json:"cached"`
}

// Status queries the server and classifies readiness of the configured model:
// error when unreachable, downloading while a pull runs, ok when installed and
// loading otherwise.
func (u *UseCase) Status(ctx context.Context) (*StatusOutput, error) {
	now := u.now()
	pr, cached := u.cache.get(now, u.Options.CacheTTL)
	if !cached {
		pr = u.query(ctx)
		if pr.err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		u.cache.put(pr)
	}

	name := u.Options.Model
	out := &StatusOutput{
		Model:     name,
		Running:   pr.running,
		URL:       u.Inference.BaseURL(),
		Version:   pr.version,
		Models:    pr.models,
		CheckedAt: pr.at.UTC(),
		Cached:    cached,
	}
	if out.Models == nil {
		out.Models = []string{}
	}
	out.ModelAvailable = pr.running && ModelInstalled(name, pr.models)
	dl, tracked := u.pulls.get(name)
	if tracked {
		out.Download = dl
	}

	switch {
	case !pr.running:
		out.Status = StatusError
		out.Error = pr.err.Error()
	case tracked && dl.Active() && out.ModelAvailable:
		// The server already lists the model; the stream just has not closed yet.
		out.Status = StatusOK
	case tracked && dl.Active():
		out.Status = StatusDownloading
	case out.ModelAvailable:
		out.Status = StatusOK
	case tracked && dl.State == PullCompleted && dl.FinishedAt != nil && now.Sub(*dl.FinishedAt) < recentCompletion:
		out.Status = StatusOK
	default:
		out.Status = StatusLoading
	}
	return out, nil
}

// query fetches tags and version in parallel. Only a tags failure marks the
// server unreachable.
func (u *UseCase) query(ctx context.Context) *snapshot {
	logger := logging.FromContext(ctx)
	p := &snapshot{at: u.now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		models, err := u.Inference.Tags(gctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(models))
		for _, m := range models {
			names = append(names, m.Name)
		}
		p.models = names
		return nil
	})
	g.Go(func() error {
		v, err := u.Inference.Version(gctx)
		if err != nil {
			logger.Debug(ctx, "inference version request failed", "error", err)
			v = "unknown"
		}
		p.version = v
		return nil
	})
	if err := g.Wait(); err != nil {
		p.err = err
		p.models = nil
		return p
	}
	p.running = true
	return p
}

// installedNames lists installed models without touching the cache.
func (u *UseCase) installedNames(ctx context.Context) ([]string, error) {
	models, err := u.Inference.Tags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names, nil
}
