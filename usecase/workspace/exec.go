package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/metrics"
	"github.com/kompox/sandboxops/internal/tfconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/kompox/sandboxops/usecase/workspace"

// exec runs one provisioning binary invocation in the workspace directory and
// records it in the run history. accept decides whether the exit code counts
// as success; nil accepts only zero. A rejected result is returned together
// with a *model.CommandError.
func (u *UseCase) exec(ctx context.Context, w *model.Workspace, op string, args []string, accept func(int) bool) (*model.CommandResult, error) {
	logger := logging.FromContext(ctx).With("workspace", w.ID, "operation", op)
	if accept == nil {
		accept = func(code int) bool { return code == 0 }
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "workspace "+op)
	defer span.End()
	span.SetAttributes(attribute.String("workspace.id", w.ID), attribute.String("workspace.operation", op))

	logger.Debug(ctx, "running provisioner", "provisioner", u.Provisioner.ID(), "args", args)
	started := time.Now()
	res, err := u.Provisioner.Run(ctx, w.Dir, slices.Clone(args)...)
	finished := time.Now()
	if res == nil && err == nil {
		err = fmt.Errorf("provisioner returned no result")
	}

	if res != nil {
		run := &model.Run{
			WorkspaceID: w.ID,
			Operation:   op,
			Args:        slices.Clone(args),
			ExitCode:    res.ExitCode,
			Stdout:      res.Stdout,
			Stderr:      res.Stderr,
			Success:     err == nil && accept(res.ExitCode),
			Changes:     op == model.OperationPlan && res.ExitCode == planExitChanges,
			StartedAt:   started.UTC(),
			FinishedAt:  finished.UTC(),
		}
		if rerr := u.Repos.Run.Create(ctx, run); rerr != nil {
			logger.Warn(ctx, "failed to record run", "error", rerr)
		}
		span.SetAttributes(attribute.Int("workspace.exit_code", res.ExitCode))
	}

	if err == nil && !accept(res.ExitCode) {
		err = &model.CommandError{Operation: op, Result: res}
	}
	metrics.ObserveRun(op, finished.Sub(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info(ctx, "provisioner run failed", "error", err, "duration", finished.Sub(started))
		var cmdErr *model.CommandError
		if !errors.As(err, &cmdErr) {
			err = fmt.Errorf("%s %s: %w", op, w.ID, err)
		}
		return res, err
	}
	logger.Info(ctx, "provisioner run succeeded", "exit_code", res.ExitCode, "duration", finished.Sub(started))
	return res, nil
}

// record stores the outcome of a lifecycle run on w. status is applied only
// when the run succeeded; a failed run keeps the prior status.
func (u *UseCase) record(ctx context.Context, w *model.Workspace, op string, res *model.CommandResult, runErr error, status model.WorkspaceStatus) error {
	w.LastOperation = op
	if res != nil {
		w.LastExitCode = res.ExitCode
		w.LastOutput = res.Output()
	} else {
		w.LastExitCode = -1
		w.LastOutput = ""
		if runErr != nil {
			w.LastOutput = runErr.Error()
		}
	}
	if runErr == nil && status != "" {
		w.Status = status
	}
	if err := u.Repos.Workspace.Update(ctx, w); err != nil {
		if runErr != nil {
			return errors.Join(runErr, err)
		}
		return fmt.Errorf("updating workspace %s: %w", w.ID, err)
	}
	return runErr
}

// removePlan deletes the saved plan file. It reports whether one existed.
func removePlan(w *model.Workspace) (bool, error) {
	err := os.Remove(filepath.Join(w.Dir, tfconfig.PlanFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("removing saved plan: %w", err)
	}
}

func hasPlan(w *model.Workspace) bool {
	info, err := os.Stat(filepath.Join(w.Dir, tfconfig.PlanFile))
	return err == nil && info.Mode().IsRegular()
}

// begin validates id, takes the workspace lock and loads the workspace. The
// returned context is the operation context; done releases it and the lock.
func (u *UseCase) begin(ctx context.Context, id string) (context.Context, *model.Workspace, func(), error) {
	if id == "" {
		return nil, nil, nil, model.ErrWorkspaceInvalid
	}
	unlock, err := u.locks.tryLock(id)
	if err != nil {
		return nil, nil, nil, err
	}
	w, err := u.Repos.Workspace.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	opCtx, cancel := u.operationContext(ctx)
	return opCtx, w, func() { cancel(); unlock() }, nil
}
