package fsdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
)

// ProjectMetadataFile holds project bookkeeping next to the files directory.
const ProjectMetadataFile = ".project.yml"

// ProjectFilesDir is the directory under <root>/<id>/ holding the project tree.
const ProjectFilesDir = "files"

// ProjectRepository stores uploaded projects as <root>/<id>/{.project.yml,files/}.
type ProjectRepository struct {
	root string
	now  func() time.Time
}

var _ domain.ProjectRepository = (*ProjectRepository)(nil)

func NewProjectRepository(root string) *ProjectRepository {
	return &ProjectRepository{root: root, now: time.Now}
}

// Root returns the parent directory of all projects.
func (r *ProjectRepository) Root() string { return r.root }

type projectMetadata struct {
	ID        string    `yaml:"id"`
	Filename  string    `yaml:"filename"`
	Extracted bool      `yaml:"extracted"`
	CreatedAt time.Time `yaml:"createdAt"`
}

// dir maps a project ID to its directory. IDs are uuids, which also keeps
// them from escaping the root.
func (r *ProjectRepository) dir(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: bad project id %q", model.ErrProjectInvalid, id)
	}
	return filepath.Join(r.root, id), nil
}

// Create allocates an ID when p.ID is empty and creates the project directories.
func (r *ProjectRepository) Create(_ context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	dir, err := r.dir(p.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return fmt.Errorf("creating project root %q: %w", r.root, err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: project %s exists", model.ErrProjectInvalid, p.ID)
		}
		return fmt.Errorf("creating project directory %q: %w", dir, err)
	}
	files := filepath.Join(dir, ProjectFilesDir)
	if err := os.Mkdir(files, 0755); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("creating project directory %q: %w", files, err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	p.Dir = files
	if err := r.write(dir, p); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

func (r *ProjectRepository) Get(_ context.Context, id string) (*model.Project, error) {
	dir, err := r.dir(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, model.ErrProjectNotFound
	}
	return r.read(id, dir, info)
}

// List returns all projects, newest first.
func (r *ProjectRepository) List(_ context.Context) ([]*model.Project, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.Project{}, nil
		}
		return nil, fmt.Errorf("reading project root %q: %w", r.root, err)
	}
	out := make([]*model.Project, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		p, err := r.read(e.Name(), filepath.Join(r.root, e.Name()), info)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) error {
	cur, err := r.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Dir = cur.Dir
	if p.CreatedAt.IsZero() {
		p.CreatedAt = cur.CreatedAt
	}
	return r.write(filepath.Dir(cur.Dir), p)
}

func (r *ProjectRepository) Delete(_ context.Context, id string) error {
	dir, err := r.dir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return model.ErrProjectNotFound
		}
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing project directory %q: %w", dir, err)
	}
	return nil
}

func (r *ProjectRepository) write(dir string, p *model.Project) error {
	data, err := yaml.Marshal(&projectMetadata{
		ID:        p.ID,
		Filename:  p.Filename,
		Extracted: p.Extracted,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding project metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, ProjectMetadataFile), data)
}

// read loads a project. A directory without metadata, such as one copied in
// by hand, is dated by its modification time.
func (r *ProjectRepository) read(id, dir string, info os.FileInfo) (*model.Project, error) {
	p := &model.Project{ID: id, Dir: filepath.Join(dir, ProjectFilesDir)}
	data, err := os.ReadFile(filepath.Join(dir, ProjectMetadataFile))
	switch {
	case err == nil:
		var md projectMetadata
		if err := yaml.Unmarshal(data, &md); err != nil {
			return nil, fmt.Errorf("parsing metadata of project %q: %w", id, err)
		}
		p.Filename = md.Filename
		p.Extracted = md.Extracted
		p.CreatedAt = md.CreatedAt
	case os.IsNotExist(err):
		p.CreatedAt = info.ModTime().UTC()
	default:
		return nil, fmt.Errorf("reading metadata of project %q: %w", id, err)
	}
	return p, nil
}
