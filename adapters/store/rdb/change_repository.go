package rdb

import (
	"context"

	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
	"gorm.io/gorm"
)

// DefaultChangeLimit is the number of changes kept per project.
const DefaultChangeLimit = 100

// ChangeRepository is a GORM-backed implementation of domain.ChangeRepository.
type ChangeRepository struct {
	db    *gorm.DB
	limit int
}

var _ domain.ChangeRepository = (*ChangeRepository)(nil)

func NewChangeRepository(db *gorm.DB) *ChangeRepository {
	return &ChangeRepository{db: db, limit: DefaultChangeLimit}
}

// Create stores a change and prunes the project history to the newest entries.
func (r *ChangeRepository) Create(ctx context.Context, c *model.FileChange) error {
	rec := &ChangeRecord{
		ProjectID: c.ProjectID,
		Timestamp: c.Timestamp,
		FilePath:  c.FilePath,
		Operation: c.Operation,
		OldHash:   c.OldHash,
		NewHash:   c.NewHash,
		Summary:   c.Summary,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if r.limit <= 0 {
			return nil
		}
		keep := tx.Model(&ChangeRecord{}).Select("seq").
			Where("project_id = ?", c.ProjectID).Order("seq DESC").Limit(r.limit)
		return tx.Where("project_id = ? AND seq NOT IN (?)", c.ProjectID, keep).Delete(&ChangeRecord{}).Error
	})
}

// ListByProject returns changes newest first. A limit <= 0 returns all of them.
func (r *ChangeRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*model.FileChange, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []ChangeRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.FileChange, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &model.FileChange{
			ProjectID: rec.ProjectID,
			Timestamp: rec.Timestamp,
			FilePath:  rec.FilePath,
			Operation: rec.Operation,
			OldHash:   rec.OldHash,
			NewHash:   rec.NewHash,
			Summary:   rec.Summary,
		})
	}
	return out, nil
}

func (r *ChangeRepository) DeleteByProject(ctx context.Context, projectID string) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&ChangeRecord{}).Error
}
