package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/naming"
	"github.com/kompox/sandboxops/internal/tfconfig"
)

// CreateInput contains data to create a workspace.
type CreateInput struct {
	// ID is the requested workspace ID. Empty allocates workspace-<compactid>.
	ID string `json:"workspaceId,omitempty"`
	// Variables are merged over the module defaults.
	Variables model.Variables `json:"variables,omitempty"`
	// SkipInit leaves the workspace uninitialized.
	SkipInit bool `json:"skipInit,omitempty"`
}

// CreateOutput wraps the created workspace.
type CreateOutput struct {
	Workspace *model.Workspace     `json:"workspace"`
	Result    *model.CommandResult `json:"result,omitempty"`
}

// Create writes a new workspace directory and runs init in it.
// When init fails the workspace is kept as uninitialized and both the output
// and a *model.CommandError are returned.
func (u *UseCase) Create(ctx context.Context, in *CreateInput) (*CreateOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	id := in.ID
	if id == "" {
		var err error
		if id, err = naming.NewWorkspaceID(); err != nil {
			return nil, err
		}
	} else if err := naming.ValidateWorkspaceID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrWorkspaceInvalid, err)
	}

	vars := tfconfig.Defaults().Merge(tfconfig.NormalizeVariables(in.Variables))
	if err := tfconfig.ValidateVariables(vars); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrWorkspaceInvalid, err)
	}

	unlock, err := u.locks.tryLock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx, cancel := u.operationContext(ctx)
	defer cancel()

	w := &model.Workspace{ID: id, Status: model.WorkspaceStatusUninitialized, Variables: vars}
	if err := u.Repos.Workspace.Create(ctx, w); err != nil {
		return nil, err
	}
	if err := u.writeConfig(w); err != nil {
		if derr := u.Repos.Workspace.Delete(ctx, w.ID); derr != nil {
			logging.FromContext(ctx).Warn(ctx, "failed to clean up workspace", "workspace", w.ID, "error", derr)
		}
		return nil, err
	}
	logging.FromContext(ctx).Info(ctx, "workspace created", "workspace", w.ID, "dir", w.Dir)

	out := &CreateOutput{Workspace: w}
	if in.SkipInit {
		return out, nil
	}
	res, runErr := u.exec(ctx, w, model.OperationInit, initArgs, nil)
	out.Result = res
	if err := u.record(ctx, w, model.OperationInit, res, runErr, model.WorkspaceStatusInitialized); err != nil {
		return out, err
	}
	return out, nil
}

// writeConfig renders main.tf and variables.tf into the workspace directory.
func (u *UseCase) writeConfig(w *model.Workspace) error {
	mainTF, err := tfconfig.RenderMain(tfconfig.MainParams{
		WorkspaceID:  w.ID,
		ModuleSource: u.ModuleSource,
		CreatedAt:    w.CreatedAt,
	})
	if err != nil {
		return err
	}
	vars, err := tfconfig.RenderVariables()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.Dir, tfconfig.MainFile), mainTF, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tfconfig.MainFile, err)
	}
	if err := os.WriteFile(filepath.Join(w.Dir, tfconfig.VariablesFile), vars, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tfconfig.VariablesFile, err)
	}
	return nil
}
