package rdb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeRepository(t *testing.T) {
	ctx := context.Background()
	db, err := OpenFromURL("sqlite:" + filepath.Join(t.TempDir(), "changes.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	repo := NewChangeRepository(db)
	repo.limit = 3

	base := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &model.FileChange{
			ProjectID: "p1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			FilePath:  fmt.Sprintf("f%d.tf", i),
			Operation: model.FileOperationUpdate,
			OldHash:   "old",
			NewHash:   "new",
			Summary:   "Modified file: 1 -> 2 lines",
		}))
	}
	require.NoError(t, repo.Create(ctx, &model.FileChange{ProjectID: "p2", FilePath: "x", Operation: model.FileOperationCreate, Timestamp: base}))

	all, err := repo.ListByProject(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3, "history pruned to the limit")
	assert.Equal(t, "f4.tf", all[0].FilePath)
	assert.Equal(t, "f2.tf", all[2].FilePath)
	assert.Equal(t, "Modified file: 1 -> 2 lines", all[0].Summary)
	assert.True(t, all[0].Timestamp.Equal(base.Add(4*time.Second)))

	one, err := repo.ListByProject(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	require.NoError(t, repo.DeleteByProject(ctx, "p1"))
	all, err = repo.ListByProject(ctx, "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
	other, err := repo.ListByProject(ctx, "p2", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
