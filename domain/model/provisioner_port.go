package model

import (
	"context"
	"time"
)

// ExitCodeNotFound is reported when the provisioning binary cannot be executed.
const ExitCodeNotFound = 127

// CommandResult holds the captured outcome of one binary invocation.
type CommandResult struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	Dir      string        `json:"dir"`
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Success reports a zero exit code.
func (r *CommandResult) Success() bool { return r != nil && r.ExitCode == 0 }

// Output returns stdout and stderr joined for display.
func (r *CommandResult) Output() string {
	if r == nil {
		return ""
	}
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// ProvisionerPort is the domain port for the external provisioning binary.
// Run returns a result for any exit code; the error is reserved for failures
// to start or wait for the process other than a missing binary.
type ProvisionerPort interface {
	ID() string
	Version(ctx context.Context) (string, error)
	Run(ctx context.Context, dir string, args ...string) (*CommandResult, error)
}
