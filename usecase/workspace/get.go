package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/tfconfig"
)

// GetInput identifies the workspace to fetch.
type GetInput struct {
	ID string `json:"id"`
}

// GetOutput holds the workspace with what its state file reports.
type GetOutput struct {
	Workspace *model.Workspace             `json:"workspace"`
	Outputs   map[string]model.OutputValue `json:"outputs"`
	Resources []model.StateResource        `json:"resources"`
	// Files lists the visible files in the workspace directory.
	Files []string `json:"files"`
}

// Get retrieves a workspace with outputs and resources from terraform.tfstate.
func (u *UseCase) Get(ctx context.Context, in *GetInput) (*GetOutput, error) {
	if in == nil || in.ID == "" {
		return nil, model.ErrWorkspaceInvalid
	}
	w, err := u.Repos.Workspace.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	out := &GetOutput{
		Workspace: w,
		Outputs:   map[string]model.OutputValue{},
		Resources: []model.StateResource{},
		Files:     []string{},
	}

	st, err := tfconfig.ReadState(filepath.Join(w.Dir, tfconfig.StateFile))
	if err != nil {
		return nil, fmt.Errorf("reading state of workspace %s: %w", w.ID, err)
	}
	if st != nil {
		if st.Outputs != nil {
			out.Outputs = st.Outputs
		}
		if st.Resources != nil {
			out.Resources = st.Resources
		}
	}

	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing workspace %s: %w", w.ID, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out.Files = append(out.Files, e.Name())
	}
	sort.Strings(out.Files)
	return out, nil
}
