package project

import (
	"context"
	"errors"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
)

// Summary is a project listing entry.
type Summary struct {
	*model.Project
	ProjectType  string   `json:"projectType"`
	Technologies []string `json:"technologies"`
	FileCount    int      `json:"fileCount"`
	Size         int64    `json:"size"`
}

type ListOutput struct {
	Projects []*Summary `json:"projects"`
	Total    int        `json:"total"`
}

// List returns all projects, newest first.
func (u *UseCase) List(ctx context.Context) (*ListOutput, error) {
	ps, err := u.Repos.Project.List(ctx)
	if err != nil {
		return nil, err
	}
	out := &ListOutput{Projects: make([]*Summary, 0, len(ps))}
	for _, p := range ps {
		s, err := summarizeProject(p)
		if err != nil {
			logging.FromContext(ctx).Warn(ctx, "skipping unreadable project", "project", p.ID, "error", err)
			continue
		}
		out.Projects = append(out.Projects, s)
	}
	out.Total = len(out.Projects)
	return out, nil
}

type GetInput struct {
	ID string `json:"id"`
}

type GetOutput struct {
	Project         *Summary                `json:"project"`
	Analysis        *model.ProjectStructure `json:"analysis"`
	Recommendations []string                `json:"recommendations"`
}

// Get returns one project with its structure analysis.
func (u *UseCase) Get(ctx context.Context, in *GetInput) (*GetOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	st, err := AnalyzeStructure(p.Dir)
	if err != nil {
		return nil, err
	}
	return &GetOutput{
		Project:         summaryOf(p, st),
		Analysis:        st,
		Recommendations: Recommendations(st),
	}, nil
}

func summarizeProject(p *model.Project) (*Summary, error) {
	st, err := AnalyzeStructure(p.Dir)
	if err != nil {
		return nil, err
	}
	return summaryOf(p, st), nil
}

func summaryOf(p *model.Project, st *model.ProjectStructure) *Summary {
	return &Summary{
		Project:      p,
		ProjectType:  st.ProjectType,
		Technologies: st.DetectedTechnologies,
		FileCount:    st.FileCount,
		Size:         st.TotalSize,
	}
}

type DeleteInput struct {
	ID string `json:"id"`
}

// Delete removes a project with its files and change history.
func (u *UseCase) Delete(ctx context.Context, in *DeleteInput) error {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return err
	}
	return u.remove(ctx, p.ID)
}

func (u *UseCase) remove(ctx context.Context, id string) error {
	if err := u.Repos.Change.DeleteByProject(ctx, id); err != nil {
		return err
	}
	if err := u.Repos.Project.Delete(ctx, id); err != nil && !errors.Is(err, model.ErrProjectNotFound) {
		return err
	}
	logging.FromContext(ctx).Info(ctx, "project removed", "project", id)
	return nil
}

type CleanupOutput struct {
	Removed []string `json:"removed"`
}

// CleanupStale removes projects created longer ago than the retention period.
func (u *UseCase) CleanupStale(ctx context.Context) (*CleanupOutput, error) {
	ps, err := u.Repos.Project.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := u.clock().Add(-u.retention())
	out := &CleanupOutput{Removed: []string{}}
	var errs []error
	for _, p := range ps {
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		if err := u.remove(ctx, p.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		out.Removed = append(out.Removed, p.ID)
	}
	return out, errors.Join(errs...)
}
