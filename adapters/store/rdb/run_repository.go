package rdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
	"gorm.io/gorm"
)

// RunRepository is a GORM-backed implementation of domain.RunRepository.
type RunRepository struct {
	db *gorm.DB
}

var _ domain.RunRepository = (*RunRepository)(nil)

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func toRecord(r *model.Run) (*RunRecord, error) {
	args, err := json.Marshal(r.Args)
	if err != nil {
		return nil, fmt.Errorf("encoding run args: %w", err)
	}
	return &RunRecord{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Operation:   r.Operation,
		Args:        string(args),
		ExitCode:    r.ExitCode,
		Stdout:      r.Stdout,
		Stderr:      r.Stderr,
		Success:     r.Success,
		Changes:     r.Changes,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}, nil
}

func toModel(rec *RunRecord) (*model.Run, error) {
	var args []string
	if rec.Args != "" {
		if err := json.Unmarshal([]byte(rec.Args), &args); err != nil {
			return nil, fmt.Errorf("decoding run args: %w", err)
		}
	}
	return &model.Run{
		ID:          rec.ID,
		WorkspaceID: rec.WorkspaceID,
		Operation:   rec.Operation,
		Args:        args,
		ExitCode:    rec.ExitCode,
		Stdout:      rec.Stdout,
		Stderr:      rec.Stderr,
		Success:     rec.Success,
		Changes:     rec.Changes,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
	}, nil
}

func (r *RunRepository) Create(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = "run-" + uuid.NewString()
	}
	rec, err := toRecord(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListByWorkspace returns runs for a workspace, newest first.
func (r *RunRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Run, error) {
	var recs []RunRecord
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Order("started_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Run, 0, len(recs))
	for i := range recs {
		m, err := toModel(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *RunRepository) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	return r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Delete(&RunRecord{}).Error
}
