package workspace

import (
	"context"
	"fmt"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/tfconfig"
)

// UpdateVariablesInput carries variables to merge into a workspace.
type UpdateVariablesInput struct {
	ID        string          `json:"id"`
	Variables model.Variables `json:"variables"`
}

// UpdateVariablesOutput wraps the updated workspace.
type UpdateVariablesOutput struct {
	Workspace *model.Workspace `json:"workspace"`
	// PlanDiscarded is true when a saved plan was removed.
	PlanDiscarded bool `json:"planDiscarded"`
}

// UpdateVariables merges variables into terraform.tfvars. Any saved plan is
// discarded and a planned workspace goes back to initialized.
func (u *UseCase) UpdateVariables(ctx context.Context, in *UpdateVariablesInput) (*UpdateVariablesOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	ctx, w, unlock, err := u.begin(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	vars := w.Variables.Merge(tfconfig.NormalizeVariables(in.Variables))
	if err := tfconfig.ValidateVariables(vars); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrWorkspaceInvalid, err)
	}
	discarded, err := removePlan(w)
	if err != nil {
		return nil, err
	}
	w.Variables = vars
	if w.Status == model.WorkspaceStatusPlanned {
		w.Status = model.WorkspaceStatusInitialized
	}
	if err := u.Repos.Workspace.Update(ctx, w); err != nil {
		return nil, err
	}
	return &UpdateVariablesOutput{Workspace: w, PlanDiscarded: discarded}, nil
}
