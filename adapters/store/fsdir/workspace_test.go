package fsdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "workspaces")
	repo := NewWorkspaceRepository(root)

	w := &model.Workspace{ID: "dev", Variables: model.Variables{"region": "us-west-2", "create_bastion": false}}
	require.NoError(t, repo.Create(ctx, w))
	assert.Equal(t, filepath.Join(root, "dev"), w.Dir)
	assert.Equal(t, model.WorkspaceStatusUninitialized, w.Status)
	assert.FileExists(t, filepath.Join(w.Dir, MetadataFile))
	assert.FileExists(t, filepath.Join(w.Dir, "terraform.tfvars"))

	err := repo.Create(ctx, &model.Workspace{ID: "dev"})
	assert.True(t, errors.Is(err, model.ErrWorkspaceExists))

	got, err := repo.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, model.Variables{"region": "us-west-2", "create_bastion": false}, got.Variables)
	assert.Equal(t, w.CreatedAt.Unix(), got.CreatedAt.Unix())

	got.Status = model.WorkspaceStatusPlanned
	got.LastOperation = model.OperationPlan
	got.LastExitCode = 2
	got.LastOutput = "Plan: 1 to add\nmore"
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, model.WorkspaceStatusPlanned, again.Status)
	assert.Equal(t, 2, again.LastExitCode)
	assert.Equal(t, "Plan: 1 to add\nmore", again.LastOutput)

	require.NoError(t, repo.Delete(ctx, "dev"))
	assert.NoDirExists(t, filepath.Join(root, "dev"))
	_, err = repo.Get(ctx, "dev")
	assert.ErrorIs(t, err, model.ErrWorkspaceNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "dev"), model.ErrWorkspaceNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &model.Workspace{ID: "dev"}), model.ErrWorkspaceNotFound)
}

func TestWorkspaceRepositoryInvalidID(t *testing.T) {
	ctx := context.Background()
	repo := NewWorkspaceRepository(t.TempDir())

	assert.ErrorIs(t, repo.Create(ctx, &model.Workspace{ID: "../escape"}), model.ErrWorkspaceInvalid)
	_, err := repo.Get(ctx, "a/b")
	assert.ErrorIs(t, err, model.ErrWorkspaceInvalid)
	assert.ErrorIs(t, repo.Delete(ctx, ""), model.ErrWorkspaceInvalid)
}

func TestWorkspaceRepositoryList(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	repo := NewWorkspaceRepository(root)

	ws, err := NewWorkspaceRepository(filepath.Join(root, "missing")).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ws)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { clock = clock.Add(time.Minute); return clock }
	for _, id := range []string{"zeta", "alpha"} {
		require.NoError(t, repo.Create(ctx, &model.Workspace{ID: id}))
	}
	// Stray entries are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "Not_A_Workspace"), 0755))

	ws, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, "zeta", ws[0].ID)
	assert.Equal(t, "alpha", ws[1].ID)
}

func TestWorkspaceRepositoryInfersStatusWithoutMetadata(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	repo := NewWorkspaceRepository(root)

	legacy := filepath.Join(root, "legacy")
	require.NoError(t, os.MkdirAll(filepath.Join(legacy, ".terraform"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "terraform.tfvars"), []byte("region = \"us-east-1\"\n"), 0644))

	w, err := repo.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, model.WorkspaceStatusInitialized, w.Status)
	assert.Equal(t, "us-east-1", w.Variables["region"])

	require.NoError(t, os.WriteFile(filepath.Join(legacy, "terraform.tfstate"), []byte("{}"), 0644))
	w, err = repo.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, model.WorkspaceStatusApplied, w.Status)
}
