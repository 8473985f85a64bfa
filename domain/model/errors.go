package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrWorkspaceExists   = errors.New("workspace already exists")
	ErrWorkspaceInvalid  = errors.New("workspace invalid")
	ErrWorkspaceBusy     = errors.New("workspace busy")
)

var (
	ErrCommandFailed           = errors.New("command failed")
	ErrProvisionerNotInstalled = errors.New("provisioner not installed")
	ErrProvisionerNotFound     = errors.New("provisioner driver not found")
)

var (
	ErrChatInvalid             = errors.New("chat message invalid")
	ErrInferenceUnavailable    = errors.New("inference server unavailable")
	ErrInferenceTimeout        = errors.New("inference request timed out")
	ErrModelInvalid            = errors.New("model name invalid")
	ErrModelAlreadyAvailable   = errors.New("model already available")
	ErrModelDownloadDisabled   = errors.New("model download disabled")
	ErrModelDownloadInProgress = errors.New("model download in progress")
	ErrModelDownloadNotFound   = errors.New("model download not found")
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrProjectInvalid      = errors.New("project request invalid")
	ErrProjectFileNotFound = errors.New("project file not found")
	ErrProjectFileExists   = errors.New("project file already exists")
	ErrUploadTooLarge      = errors.New("upload too large")
)

var (
	ErrCatalogNotFound = errors.New("catalog entry not found")
	ErrConfigInvalid   = errors.New("configuration invalid")
)

// CommandError reports a provisioning binary run that exited non-zero.
type CommandError struct {
	Operation string
	Result    *CommandResult
}

func (e *CommandError) Error() string {
	if e.Result == nil {
		return fmt.Sprintf("%s failed", e.Operation)
	}
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		msg = lastLine(e.Result.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("%s failed with exit code %d", e.Operation, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Operation, e.Result.ExitCode, msg)
}

// Unwrap lets errors.Is match ErrCommandFailed, and ErrProvisionerNotInstalled
// when the binary could not be found.
func (e *CommandError) Unwrap() []error {
	if e.Result != nil && e.Result.ExitCode == ExitCodeNotFound {
		return []error{ErrCommandFailed, ErrProvisionerNotInstalled}
	}
	return []error{ErrCommandFailed}
}

// ExitCode returns the exit code of the failed run.
func (e *CommandError) ExitCode() int {
	if e.Result == nil {
		return 1
	}
	return e.Result.ExitCode
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
