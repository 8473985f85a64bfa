package model

import "time"

// WorkspaceStatus is the lifecycle label of a workspace.
type WorkspaceStatus string

const (
	WorkspaceStatusUninitialized WorkspaceStatus = "uninitialized"
	WorkspaceStatusInitialized   WorkspaceStatus = "initialized"
	WorkspaceStatusPlanned       WorkspaceStatus = "planned"
	WorkspaceStatusApplied       WorkspaceStatus = "applied"
	WorkspaceStatusDestroyed     WorkspaceStatus = "destroyed"
)

// Valid reports whether s is one of the known statuses.
func (s WorkspaceStatus) Valid() bool {
	switch s {
	case WorkspaceStatusUninitialized, WorkspaceStatusInitialized, WorkspaceStatusPlanned,
		WorkspaceStatusApplied, WorkspaceStatusDestroyed:
		return true
	}
	return false
}

// Workspace is a directory holding one set of provisioning parameters
// and the status/output of the last lifecycle operation run in it.
type Workspace struct {
	ID            string          `json:"id"`
	Dir           string          `json:"dir"`
	Status        WorkspaceStatus `json:"status"`
	Variables     Variables       `json:"variables"`
	LastOperation string          `json:"lastOperation,omitempty"`
	LastExitCode  int             `json:"lastExitCode"`
	LastOutput    string          `json:"lastOutput,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Variables maps variable names to bool, number (float64/int) or string values.
type Variables map[string]any

// Clone returns a shallow copy of v.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge returns a copy of v overlaid with other.
func (v Variables) Merge(other Variables) Variables {
	out := v.Clone()
	if out == nil {
		out = Variables{}
	}
	for k, val := range other {
		out[k] = val
	}
	return out
}

// Lifecycle operation names.
const (
	OperationInit    = "init"
	OperationPlan    = "plan"
	OperationApply   = "apply"
	OperationDestroy = "destroy"
	OperationOutput  = "output"
)

// Run records one invocation of the provisioning binary.
type Run struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Operation   string    `json:"operation"`
	Args        []string  `json:"args"`
	ExitCode    int       `json:"exitCode"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	Success     bool      `json:"success"`
	Changes     bool      `json:"changes,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// OutputValue is one entry of the provisioning tool's output map.
type OutputValue struct {
	Value     any  `json:"value"`
	Type      any  `json:"type,omitempty"`
	Sensitive bool `json:"sensitive"`
}

// StateResource is a resource entry read from the workspace state file.
type StateResource struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Module   string `json:"module"`
	Mode     string `json:"mode,omitempty"`
}
