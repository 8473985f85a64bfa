package workspace

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
)

// ListInput is empty; workspaces are not filtered.
type ListInput struct{}

// ListOutput holds workspaces ordered by creation time.
type ListOutput struct {
	Workspaces []*model.Workspace `json:"workspaces"`
}

// List returns all workspaces.
func (u *UseCase) List(ctx context.Context, _ *ListInput) (*ListOutput, error) {
	items, err := u.Repos.Workspace.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Workspace{}
	}
	return &ListOutput{Workspaces: items}, nil
}
