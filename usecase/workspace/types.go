package workspace

import (
	"context"
	"time"

	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
)

// Repos holds repositories needed for workspace use cases.
type Repos struct {
	Workspace domain.WorkspaceRepository
	Run       domain.RunRepository
}

// UseCase wires repositories and the provisioner port for workspace use cases.
type UseCase struct {
	Repos       *Repos
	Provisioner model.ProvisionerPort
	// ModuleSource is the module source written into generated main.tf files.
	ModuleSource string
	// OperationTimeout bounds a lifecycle operation; zero means DefaultOperationTimeout.
	OperationTimeout time.Duration

	locks lockSet
}

// Arguments passed to the provisioning binary for each lifecycle operation.
var (
	initArgs      = []string{"init", "-input=false", "-no-color"}
	planArgs      = []string{"plan", "-detailed-exitcode", "-input=false", "-no-color", "-out=tfplan"}
	applyPlanArgs = []string{"apply", "-input=false", "-no-color", "tfplan"}
	applyAutoArgs = []string{"apply", "-auto-approve", "-input=false", "-no-color"}
	destroyArgs   = []string{"destroy", "-auto-approve", "-input=false", "-no-color"}
	outputArgs    = []string{"output", "-json"}
)

// planExitChanges is the plan exit code reported with -detailed-exitcode when changes are pending.
const planExitChanges = 2

// DefaultOperationTimeout bounds a lifecycle operation when UseCase.OperationTimeout is zero.
const DefaultOperationTimeout = 30 * time.Minute

// operationContext detaches ctx from its caller's cancellation and bounds it
// by the operation timeout.
func (u *UseCase) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := u.OperationTimeout
	if d <= 0 {
		d = DefaultOperationTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}
