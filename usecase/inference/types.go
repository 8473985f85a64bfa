// Package inference implements readiness checks and model downloads against
// the local inference server.
package inference

import (
	"strings"
	"time"

	"github.com/kompox/sandboxops/domain/model"
)

const (
	DefaultCacheTTL    = 5 * time.Second
	DefaultPullTimeout = time.Hour
	// recentCompletion is how long a finished download reports ok while the
	// server catches up with the new model.
	recentCompletion = 30 * time.Second
)

// Options configures the use case.
type Options struct {
	// Model is the model chat requests use and Status checks for.
	Model string
	// AllowDownload enables Pull.
	AllowDownload bool
	// CacheTTL bounds how long status results are reused. Zero means DefaultCacheTTL.
	CacheTTL time.Duration
	// PullTimeout bounds one background pull. Zero means DefaultPullTimeout.
	PullTimeout time.Duration
}

// UseCase wires the inference port with download tracking and a status cache.
type UseCase struct {
	Inference model.InferencePort
	Options   Options

	pulls *tracker
	cache snapshotCache
	now   func() time.Time
}

// New returns a use case for the given port.
func New(port model.InferencePort, opts Options) *UseCase {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.PullTimeout == 0 {
		opts.PullTimeout = DefaultPullTimeout
	}
	return &UseCase{Inference: port, Options: opts, pulls: newTracker(), now: time.Now}
}

func (u *UseCase) modelName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return u.Options.Model
}

// ModelInstalled reports whether want is among installed. A name without a
// tag also matches any installed tag of that model.
func ModelInstalled(want string, installed []string) bool {
	for _, name := range installed {
		if name == want {
			return true
		}
		if !strings.Contains(want, ":") {
			if base, _, _ := strings.Cut(name, ":"); base == want {
				return true
			}
		}
	}
	return false
}
