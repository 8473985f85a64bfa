// Package terraform implements the provisioner driver for the terraform and
// tofu command line tools, which share the same subcommands and flags.
package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	provisionerdrv "github.com/kompox/sandboxops/adapters/drivers/provisioner"
	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/kompox/sandboxops/adapters/drivers/provisioner/terraform"

// automationEnv disables interactive prompts and upgrade checks.
var automationEnv = []string{"TF_IN_AUTOMATION=1", "TF_INPUT=0", "CHECKPOINT_DISABLE=1"}

// interruptGrace is how long the binary may take to stop after SIGINT before
// it is killed. Terraform releases the state lock and persists partial state
// in that window.
const interruptGrace = 2 * time.Minute

func init() {
	provisionerdrv.Register("terraform", func(settings map[string]string) (model.ProvisionerPort, error) {
		return New("terraform", settings)
	})
	provisionerdrv.Register("tofu", func(settings map[string]string) (model.ProvisionerPort, error) {
		return New("tofu", settings)
	})
}

type driver struct {
	id     string
	binary string
}

// New returns a driver for id. settings["binary"] overrides the executable,
// which otherwise defaults to id.
func New(id string, settings map[string]string) (model.ProvisionerPort, error) {
	if id == "" {
		return nil, fmt.Errorf("driver id is required")
	}
	bin := settings[provisionerdrv.SettingBinary]
	if bin == "" {
		bin = id
	}
	return &driver{id: id, binary: bin}, nil
}

func (d *driver) ID() string { return d.id }

// Version returns the first line of `<binary> version`, e.g. "Terraform v1.6.0".
func (d *driver) Version(ctx context.Context) (string, error) {
	res, err := d.Run(ctx, "", "version")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &model.CommandError{Operation: "version", Result: res}
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(line), nil
}

// Run executes the binary with args in dir. Non-zero exits are reported in the
// result, and a binary that cannot be found yields exit code 127.
func (d *driver) Run(ctx context.Context, dir string, args ...string) (*model.CommandResult, error) {
	op := "run"
	if len(args) > 0 {
		op = args[0]
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, d.id+" "+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("provisioner.driver", d.id),
		attribute.String("provisioner.dir", dir),
		attribute.StringSlice("provisioner.args", args),
	)

	logger := logging.FromContext(ctx)
	res := &model.CommandResult{
		Command: d.binary,
		Args:    append([]string(nil), args...),
		Dir:     dir,
	}

	path, err := exec.LookPath(d.binary)
	if err != nil {
		res.ExitCode = model.ExitCodeNotFound
		res.Stderr = "command not found: " + d.binary
		span.SetStatus(codes.Error, res.Stderr)
		logger.Warn(ctx, "provisioner binary not found", "binary", d.binary)
		return res, nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), automationEnv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptGrace

	logger.Debug(ctx, "executing provisioner command", "command", d.binary+" "+strings.Join(args, " "), "dir", dir)

	start := time.Now()
	err = cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case ctx.Err() != nil && cmd.ProcessState != nil:
			// Exited cleanly after the interrupt.
			res.ExitCode = cmd.ProcessState.ExitCode()
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("running %s %s: %w", d.binary, op, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn(ctx, "provisioner command interrupted", "command", d.binary+" "+op, "exit_code", res.ExitCode)
			span.SetStatus(codes.Error, ctxErr.Error())
			return res, fmt.Errorf("%s %s interrupted: %w", d.binary, op, ctxErr)
		}
	}

	span.SetAttributes(attribute.Int("provisioner.exit_code", res.ExitCode))
	if res.ExitCode != 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", res.ExitCode))
	}
	logger.Debug(ctx, "provisioner command finished", "exit_code", res.ExitCode, "elapsed", res.Duration.Seconds())
	return res, nil
}
