package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/metrics"
)

// PullInput names the model to download. Empty means the configured model.
type PullInput struct {
	Model string `json:"model,omitempty"`
}

// PullOutput carries the progress of the started download.
type PullOutput struct {
	Message  string    `json:"message"`
	Progress *Progress `json:"progress"`
}

// Pull starts downloading a model in the background. The download outlives
// ctx and is bounded by Options.PullTimeout.
func (u *UseCase) Pull(ctx context.Context, in *PullInput) (*PullOutput, error) {
	if in == nil {
		in = &PullInput{}
	}
	name := u.modelName(in.Model)
	if name == "" {
		return nil, fmt.Errorf("%w: model name is required", model.ErrModelInvalid)
	}
	if !u.Options.AllowDownload {
		return nil, model.ErrModelDownloadDisabled
	}
	if p, ok := u.pulls.get(name); ok && p.Active() {
		return nil, model.ErrModelDownloadInProgress
	}
	installed, err := u.installedNames(ctx)
	if err != nil {
		return nil, err
	}
	if ModelInstalled(name, installed) {
		return nil, fmt.Errorf("%w: %s", model.ErrModelAlreadyAvailable, name)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.Options.PullTimeout)
	p, err := u.pulls.start(name, cancel, u.now().UTC())
	if err != nil {
		cancel()
		return nil, err
	}
	logging.FromContext(ctx).Info(ctx, "model download started", "model", name)
	progress, _ := u.pulls.get(name)
	go u.runPull(pctx, cancel, p)

	return &PullOutput{Message: "Started downloading " + name, Progress: progress}, nil
}

func (u *UseCase) runPull(ctx context.Context, cancel context.CancelFunc, p *pull) {
	defer u.pulls.done()
	defer cancel()
	name := p.progress.Model
	logger := logging.FromContext(ctx).With("model", name)

	err := u.Inference.Pull(ctx, name, func(ev model.PullEvent) {
		u.pulls.update(p, func(pr *Progress) { pr.Apply(ev, u.now().UTC()) })
	})
	failure := err
	u.pulls.update(p, func(pr *Progress) {
		now := u.now().UTC()
		switch {
		case err != nil && pr.State != PullFailed:
			pr.fail(err.Error(), now)
		case err == nil && pr.State != PullCompleted && pr.State != PullFailed:
			pr.complete(now)
		}
		pr.UpdatedAt = now
		if pr.State == PullFailed && failure == nil {
			failure = errors.New(pr.Error)
		}
	})
	u.cache.invalidate()

	metrics.ModelPulls.WithLabelValues(metrics.Result(failure)).Inc()
	if failure != nil {
		logger.Warn(ctx, "model download failed", "error", failure)
		return
	}
	logger.Info(ctx, "model download finished")
}

// ProgressInput names the download to inspect.
type ProgressInput struct {
	Model string `json:"model,omitempty"`
}

// Progress returns the tracked progress of a download.
func (u *UseCase) Progress(_ context.Context, in *ProgressInput) (*Progress, error) {
	if in == nil {
		in = &ProgressInput{}
	}
	p, ok := u.pulls.get(u.modelName(in.Model))
	if !ok {
		return nil, model.ErrModelDownloadNotFound
	}
	return p, nil
}

// Downloads returns every tracked download ordered by model name.
func (u *UseCase) Downloads() []*Progress {
	return u.pulls.all()
}

// ResetDownloadInput names the download state to clear.
type ResetDownloadInput struct {
	Model string `json:"model,omitempty"`
}

// ResetDownloadOutput confirms the reset.
type ResetDownloadOutput struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

// ResetDownload clears the tracked state of a model, cancelling a running download.
func (u *UseCase) ResetDownload(ctx context.Context, in *ResetDownloadInput) (*ResetDownloadOutput, error) {
	if in == nil {
		in = &ResetDownloadInput{}
	}
	name := u.modelName(in.Model)
	if !u.pulls.remove(name) {
		return nil, model.ErrModelDownloadNotFound
	}
	u.cache.invalidate()
	logging.FromContext(ctx).Info(ctx, "model download state reset", "model", name)
	return &ResetDownloadOutput{Model: name, Message: "Reset download state for " + name}, nil
}

// Shutdown cancels running downloads and waits for their goroutines.
func (u *UseCase) Shutdown(ctx context.Context) error {
	return u.pulls.shutdown(ctx)
}
