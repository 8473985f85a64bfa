package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
)

// RunsInput identifies the workspace whose history is listed.
type RunsInput struct {
	ID string `json:"id"`
}

// RunsOutput holds run history, newest first.
type RunsOutput struct {
	Runs []*model.Run `json:"runs"`
}

// Runs lists recorded provisioner runs of a workspace.
func (u *UseCase) Runs(ctx context.Context, in *RunsInput) (*RunsOutput, error) {
	if in == nil || in.ID == "" {
		return nil, model.ErrWorkspaceInvalid
	}
	if _, err := u.Repos.Workspace.Get(ctx, in.ID); err != nil {
		return nil, err
	}
	runs, err := u.Repos.Run.ListByWorkspace(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	return &RunsOutput{Runs: runs}, nil
}
