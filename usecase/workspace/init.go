package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
)

// InitInput identifies the workspace to initialize.
type InitInput struct {
	ID string `json:"id"`
}

// InitOutput holds the workspace and the init result.
type InitOutput struct {
	Workspace *model.Workspace     `json:"workspace"`
	Result    *model.CommandResult `json:"result"`
}

// Init re-runs init. An uninitialized or destroyed workspace becomes
// initialized; other statuses are kept.
func (u *UseCase) Init(ctx context.Context, in *InitInput) (*InitOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	ctx, w, unlock, err := u.begin(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	next := model.WorkspaceStatus("")
	if w.Status == model.WorkspaceStatusUninitialized || w.Status == model.WorkspaceStatusDestroyed {
		next = model.WorkspaceStatusInitialized
	}
	res, runErr := u.exec(ctx, w, model.OperationInit, initArgs, nil)
	if err := u.record(ctx, w, model.OperationInit, res, runErr, next); err != nil {
		return nil, err
	}
	return &InitOutput{Workspace: w, Result: res}, nil
}
