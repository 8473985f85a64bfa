package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
)

// DefaultChangesLimit is the number of changes Changes returns when the input sets none.
const DefaultChangesLimit = 50

// track records one file operation. An update that leaves the content
// unchanged records nothing and returns nil. An empty summary is derived
// from the operation and content.
func (u *UseCase) track(ctx context.Context, projectID, path, op string, old, cur []byte, summary string) (*model.FileChange, error) {
	c := &model.FileChange{
		ProjectID: projectID,
		Timestamp: u.clock().UTC(),
		FilePath:  path,
		Operation: op,
	}
	if old != nil {
		c.OldHash = hash(old)
	}
	if op != model.FileOperationDelete {
		c.NewHash = hash(cur)
	}
	if op == model.FileOperationUpdate && c.OldHash == c.NewHash {
		return nil, nil
	}
	c.Summary = summary
	if c.Summary == "" {
		c.Summary = summarize(op, cur)
	}
	if err := u.Repos.Change.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("recording change of %s: %w", path, err)
	}
	logging.FromContext(ctx).Debug(ctx, "tracked file change", "project", projectID, "path", path, "operation", op)
	return c, nil
}

func hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func summarize(op string, content []byte) string {
	switch op {
	case model.FileOperationCreate:
		return fmt.Sprintf("Created new file with %d bytes", len(content))
	case model.FileOperationDelete:
		return "File deleted"
	case model.FileOperationUpdate:
		if !utf8.Valid(content) {
			return fmt.Sprintf("Updated binary file: %d bytes", len(content))
		}
		text := string(content)
		return fmt.Sprintf("Updated file: %d lines, %d characters", countLines(text), utf8.RuneCountInString(text))
	}
	return "Operation: " + op
}

type ChangesInput struct {
	ID string `json:"id"`
	// Limit caps the returned changes; zero means DefaultChangesLimit.
	Limit int `json:"limit,omitempty"`
}

type ChangesOutput struct {
	ProjectID string               `json:"projectId"`
	Changes   []*model.FileChange  `json:"changes"`
	Summary   *model.ChangeSummary `json:"summary"`
}

// Changes lists the newest changes of a project with a summary of its whole history.
func (u *UseCase) Changes(ctx context.Context, in *ChangesInput) (*ChangesOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	all, err := u.Repos.Change.ListByProject(ctx, p.ID, 0)
	if err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultChangesLimit
	}
	recent := all
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return &ChangesOutput{ProjectID: p.ID, Changes: recent, Summary: Summarize(all)}, nil
}

// Summarize aggregates a change history given newest first.
func Summarize(changes []*model.FileChange) *model.ChangeSummary {
	s := &model.ChangeSummary{TotalChanges: len(changes), Operations: map[string]int{}}
	files := map[string]struct{}{}
	for _, c := range changes {
		files[c.FilePath] = struct{}{}
		s.Operations[c.Operation]++
		if s.LastChange == nil || c.Timestamp.After(*s.LastChange) {
			ts := c.Timestamp
			s.LastChange = &ts
		}
	}
	s.FilesModified = len(files)
	return s
}

type ClearChangesInput struct {
	ID string `json:"id"`
}

// ClearChanges drops the change history of a project.
func (u *UseCase) ClearChanges(ctx context.Context, in *ClearChangesInput) error {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return err
	}
	return u.Repos.Change.DeleteByProject(ctx, p.ID)
}
