package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/tfconfig"
)

// ApplyInput identifies the workspace to apply.
type ApplyInput struct {
	ID string `json:"id"`
}

// ApplyOutput holds the apply result and the outputs read afterwards.
type ApplyOutput struct {
	Workspace *model.Workspace             `json:"workspace"`
	Result    *model.CommandResult         `json:"result"`
	Outputs   map[string]model.OutputValue `json:"outputs"`
	// UsedPlan is true when a saved plan was applied.
	UsedPlan bool `json:"usedPlan"`
}

// Apply applies the saved plan when one exists, otherwise it runs with
// -auto-approve. On success the plan file is removed and outputs are read.
func (u *UseCase) Apply(ctx context.Context, in *ApplyInput) (*ApplyOutput, error) {
	if in == nil {
		return nil, model.ErrWorkspaceInvalid
	}
	ctx, w, unlock, err := u.begin(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	logger := logging.FromContext(ctx)

	usedPlan := hasPlan(w)
	args := applyAutoArgs
	if usedPlan {
		args = applyPlanArgs
	}
	res, runErr := u.exec(ctx, w, model.OperationApply, args, nil)
	if err := u.record(ctx, w, model.OperationApply, res, runErr, model.WorkspaceStatusApplied); err != nil {
		return nil, err
	}
	if _, err := removePlan(w); err != nil {
		logger.Warn(ctx, "failed to remove applied plan", "workspace", w.ID, "error", err)
	}

	out := &ApplyOutput{Workspace: w, Result: res, Outputs: map[string]model.OutputValue{}, UsedPlan: usedPlan}
	ores, err := u.exec(ctx, w, model.OperationOutput, outputArgs, nil)
	if err != nil {
		logger.Warn(ctx, "failed to read outputs", "workspace", w.ID, "error", err)
		return out, nil
	}
	outputs, err := tfconfig.ParseOutputJSON([]byte(ores.Stdout))
	if err != nil {
		logger.Warn(ctx, "failed to parse outputs", "workspace", w.ID, "error", err)
		return out, nil
	}
	out.Outputs = outputs
	return out, nil
}
