package domain

import (
	"context"

	"github.com/kompox/sandboxops/domain/model"
)

// WorkspaceRepository stores and retrieves workspaces.
// Create fails with model.ErrWorkspaceExists when the ID is taken.
type WorkspaceRepository interface {
	Create(ctx context.Context, w *model.Workspace) error
	Get(ctx context.Context, id string) (*model.Workspace, error)
	List(ctx context.Context) ([]*model.Workspace, error)
	Update(ctx context.Context, w *model.Workspace) error
	Delete(ctx context.Context, id string) error
}

// RunRepository stores the history of provisioning binary runs.
type RunRepository interface {
	Create(ctx context.Context, r *model.Run) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Run, error)
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

// ProjectRepository stores uploaded projects. Create allocates the project
// directory and sets Project.Dir.
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]*model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id string) error
}

// ChangeRepository stores the file change history of projects.
type ChangeRepository interface {
	Create(ctx context.Context, c *model.FileChange) error
	// ListByProject returns changes newest first; limit <= 0 returns all.
	ListByProject(ctx context.Context, projectID string, limit int) ([]*model.FileChange, error)
	DeleteByProject(ctx context.Context, projectID string) error
}
