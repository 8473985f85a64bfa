package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
)

// DeleteInput identifies the workspace to delete.
type DeleteInput struct {
	ID string `json:"id"`
	// Destroy runs destroy before removing the directory.
	Destroy bool `json:"destroy,omitempty"`
}

// DeleteOutput reports what was removed.
type DeleteOutput struct {
	ID        string               `json:"id"`
	Destroyed bool                 `json:"destroyed"`
	Result    *model.CommandResult `json:"result,omitempty"`
}

// Delete removes the workspace directory and its run history. Applied
// infrastructure is left alone unless Destroy is set, in which case a failed
// destroy aborts the delete.
func (u *UseCase) Delete(ctx context.Context, in *DeleteInput) (*DeleteOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	ctx, w, unlock, err := u.begin(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := &DeleteOutput{ID: w.ID}
	if in.Destroy {
		res, err := u.destroy(ctx, w)
		if err != nil {
			return nil, err
		}
		out.Destroyed = true
		out.Result = res
	}
	if err := u.Repos.Workspace.Delete(ctx, w.ID); err != nil {
		return nil, err
	}
	if err := u.Repos.Run.DeleteByWorkspace(ctx, w.ID); err != nil {
		logging.FromContext(ctx).Warn(ctx, "failed to delete run history", "workspace", w.ID, "error", err)
	}
	logging.FromContext(ctx).Info(ctx, "workspace deleted", "workspace", w.ID, "destroyed", out.Destroyed)
	return out, nil
}
