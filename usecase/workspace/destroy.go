package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
)

// DestroyInput identifies the workspace to destroy.
type DestroyInput struct {
	ID string `json:"id"`
}

// DestroyOutput holds the destroy result.
type DestroyOutput struct {
	Workspace *model.Workspace     `json:"workspace"`
	Result    *model.CommandResult `json:"result"`
}

// Destroy tears down the workspace's infrastructure and keeps its directory.
func (u *UseCase) Destroy(ctx context.Context, in *DestroyInput) (*DestroyOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	ctx, w, unlock, err := u.begin(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res, err := u.destroy(ctx, w)
	if err != nil {
		return nil, err
	}
	return &DestroyOutput{Workspace: w, Result: res}, nil
}

// destroy runs destroy on a locked workspace and records the outcome.
func (u *UseCase) destroy(ctx context.Context, w *model.Workspace) (*model.CommandResult, error) {
	res, runErr := u.exec(ctx, w, model.OperationDestroy, destroyArgs, nil)
	if err := u.record(ctx, w, model.OperationDestroy, res, runErr, model.WorkspaceStatusDestroyed); err != nil {
		return res, err
	}
	if _, err := removePlan(w); err != nil {
		logging.FromContext(ctx).Warn(ctx, "failed to remove stale plan", "workspace", w.ID, "error", err)
	}
	return res, nil
}
