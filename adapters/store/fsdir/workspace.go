// Package fsdir stores workspaces as one directory each under a root directory.
//
// Layout of <root>/<id>/:
//
//	.workspace.yml    status and last-run bookkeeping
//	terraform.tfvars  variables
//	*.tf, state, plan files written by the use case and the provisioning binary
package fsdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/naming"
	"github.com/kompox/sandboxops/internal/tfconfig"
	"gopkg.in/yaml.v3"
)

// MetadataFile holds workspace bookkeeping inside the workspace directory.
const MetadataFile = ".workspace.yml"

// WorkspaceRepository is a directory-backed implementation of domain.WorkspaceRepository.
type WorkspaceRepository struct {
	root string
	now  func() time.Time
}

var _ domain.WorkspaceRepository = (*WorkspaceRepository)(nil)

// NewWorkspaceRepository returns a repository rooted at root. The directory is
// created on first write.
func NewWorkspaceRepository(root string) *WorkspaceRepository {
	return &WorkspaceRepository{root: root, now: time.Now}
}

// Root returns the parent directory of all workspaces.
func (r *WorkspaceRepository) Root() string { return r.root }

type metadata struct {
	ID            string                `yaml:"id"`
	Status        model.WorkspaceStatus `yaml:"status"`
	LastOperation string                `yaml:"lastOperation,omitempty"`
	LastExitCode  int                   `yaml:"lastExitCode"`
	LastOutput    string                `yaml:"lastOutput,omitempty"`
	CreatedAt     time.Time             `yaml:"createdAt"`
	UpdatedAt     time.Time             `yaml:"updatedAt"`
}

func (r *WorkspaceRepository) dir(id string) (string, error) {
	if err := naming.ValidateWorkspaceID(id); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrWorkspaceInvalid, err)
	}
	return filepath.Join(r.root, id), nil
}

func (r *WorkspaceRepository) Create(_ context.Context, w *model.Workspace) error {
	dir, err := r.dir(w.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return fmt.Errorf("creating workspace root %q: %w", r.root, err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return model.ErrWorkspaceExists
		}
		return fmt.Errorf("creating workspace directory %q: %w", dir, err)
	}

	now := r.now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	if w.Status == "" {
		w.Status = model.WorkspaceStatusUninitialized
	}
	w.Dir = dir
	if err := r.write(dir, w); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

func (r *WorkspaceRepository) Get(_ context.Context, id string) (*model.Workspace, error) {
	dir, err := r.dir(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, model.ErrWorkspaceNotFound
	}
	return r.read(id, dir, info)
}

// List returns all workspaces ordered by creation time. Entries that are not
// valid workspace IDs are ignored.
func (r *WorkspaceRepository) List(_ context.Context) ([]*model.Workspace, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.Workspace{}, nil
		}
		return nil, fmt.Errorf("reading workspace root %q: %w", r.root, err)
	}
	out := make([]*model.Workspace, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || naming.ValidateWorkspaceID(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		w, err := r.read(e.Name(), filepath.Join(r.root, e.Name()), info)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *WorkspaceRepository) Update(ctx context.Context, w *model.Workspace) error {
	cur, err := r.Get(ctx, w.ID)
	if err != nil {
		return err
	}
	w.Dir = cur.Dir
	if w.CreatedAt.IsZero() {
		w.CreatedAt = cur.CreatedAt
	}
	w.UpdatedAt = r.now().UTC()
	return r.write(cur.Dir, w)
}

func (r *WorkspaceRepository) Delete(_ context.Context, id string) error {
	dir, err := r.dir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return model.ErrWorkspaceNotFound
		}
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing workspace directory %q: %w", dir, err)
	}
	return nil
}

func (r *WorkspaceRepository) write(dir string, w *model.Workspace) error {
	tfvars, err := tfconfig.EncodeTFVars(w.Variables)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrWorkspaceInvalid, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, tfconfig.TFVarsFile), tfvars); err != nil {
		return err
	}
	md := metadata{
		ID:            w.ID,
		Status:        w.Status,
		LastOperation: w.LastOperation,
		LastExitCode:  w.LastExitCode,
		LastOutput:    w.LastOutput,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	data, err := yaml.Marshal(&md)
	if err != nil {
		return fmt.Errorf("encoding workspace metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, MetadataFile), data)
}

// read loads a workspace. Directories without metadata are reported with a
// status inferred from the files the provisioning binary leaves behind.
func (r *WorkspaceRepository) read(id, dir string, info os.FileInfo) (*model.Workspace, error) {
	w := &model.Workspace{ID: id, Dir: dir, Variables: model.Variables{}}

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	switch {
	case err == nil:
		var md metadata
		if err := yaml.Unmarshal(data, &md); err != nil {
			return nil, fmt.Errorf("parsing metadata of workspace %q: %w", id, err)
		}
		w.Status = md.Status
		w.LastOperation = md.LastOperation
		w.LastExitCode = md.LastExitCode
		w.LastOutput = md.LastOutput
		w.CreatedAt = md.CreatedAt
		w.UpdatedAt = md.UpdatedAt
	case os.IsNotExist(err):
		w.Status = inferStatus(dir)
		w.CreatedAt = info.ModTime().UTC()
		w.UpdatedAt = w.CreatedAt
	default:
		return nil, fmt.Errorf("reading metadata of workspace %q: %w", id, err)
	}
	if !w.Status.Valid() {
		w.Status = inferStatus(dir)
	}

	tfvars, err := os.ReadFile(filepath.Join(dir, tfconfig.TFVarsFile))
	switch {
	case err == nil:
		vars, err := tfconfig.DecodeTFVars(tfvars)
		if err != nil {
			return nil, fmt.Errorf("parsing variables of workspace %q: %w", id, err)
		}
		w.Variables = vars
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading variables of workspace %q: %w", id, err)
	}
	return w, nil
}

func inferStatus(dir string) model.WorkspaceStatus {
	if fileExists(filepath.Join(dir, tfconfig.StateFile)) {
		return model.WorkspaceStatusApplied
	}
	if fileExists(filepath.Join(dir, ".terraform")) {
		return model.WorkspaceStatusInitialized
	}
	return model.WorkspaceStatusUninitialized
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}
