package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
)

// PlanInput identifies the workspace to plan.
type PlanInput struct {
	ID string `json:"id"`
}

// PlanOutput holds the plan result.
type PlanOutput struct {
	Workspace *model.Workspace     `json:"workspace"`
	Result    *model.CommandResult `json:"result"`
	// Changes is true when the plan has pending changes.
	Changes bool `json:"changes"`
}

// Plan saves a plan to tfplan. Exit code 0 (no changes) and 2 (changes) both
// succeed and mark the workspace planned.
func (u *UseCase) Plan(ctx context.Context, in *PlanInput) (*PlanOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	ctx, w, unlock, err := u.begin(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	accept := func(code int) bool { return code == 0 || code == planExitChanges }
	res, runErr := u.exec(ctx, w, model.OperationPlan, planArgs, accept)
	if err := u.record(ctx, w, model.OperationPlan, res, runErr, model.WorkspaceStatusPlanned); err != nil {
		return nil, err
	}
	return &PlanOutput{Workspace: w, Result: res, Changes: res.ExitCode == planExitChanges}, nil
}
