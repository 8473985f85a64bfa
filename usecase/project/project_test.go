package project

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kompox/sandboxops/adapters/store/fsdir"
	"github.com/kompox/sandboxops/adapters/store/inmem"
	"github.com/kompox/sandboxops/domain/model"
)

type fakeInference struct {
	model.InferencePort
	prompts []string
	reply   string
}

func (f *fakeInference) Generate(_ context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	return &model.GenerateResponse{Model: req.Model, Response: f.reply}, nil
}

// tick returns a clock advancing one second per call.
func tick(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestUseCase(t *testing.T) (*UseCase, *fakeInference) {
	t.Helper()
	inf := &fakeInference{reply: "## Findings\n\nLooks fine."}
	return &UseCase{
		Repos: &Repos{
			Project: fsdir.NewProjectRepository(filepath.Join(t.TempDir(), "uploads")),
			Change:  inmem.NewChangeRepository(),
		},
		Inference: inf,
		Model:     "codellama:13b-instruct",
		now:       tick(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)),
	}, inf
}

func upload(t *testing.T, u *UseCase, name, body string) *UploadOutput {
	t.Helper()
	out, err := u.Upload(context.Background(), &UploadInput{Filename: name, Body: strings.NewReader(body)})
	require.NoError(t, err)
	return out
}

func tarGz(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.String()
}

func TestUploadPlainFile(t *testing.T) {
	u, _ := newTestUseCase(t)
	out := upload(t, u, `C:\work\main.tf`, "resource \"null_resource\" \"a\" {}\n")

	_, err := uuid.Parse(out.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, "main.tf", out.Project.Filename)
	assert.False(t, out.Project.Extracted)
	assert.FileExists(t, filepath.Join(out.Project.Dir, "main.tf"))
	assert.Equal(t, "terraform", out.Analysis.ProjectType)
	assert.Equal(t, []string{"main.tf"}, out.Analysis.ConfigurationFiles)
	assert.Contains(t, out.Recommendations, "Terraform configuration detected. Run a plan in a sandbox workspace before applying changes.")
}

func TestUploadArchiveIsExtracted(t *testing.T) {
	u, _ := newTestUseCase(t)
	out := upload(t, u, "infra.tar.gz", tarGz(t, map[string]string{
		"infra/main.tf":             "module \"net\" { source = \"./modules/net\" }\n",
		"infra/modules/net/main.tf": "variable \"cidr\" {}\n",
	}))

	assert.True(t, out.Project.Extracted)
	assert.FileExists(t, filepath.Join(out.Project.Dir, "main.tf"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(out.Project.Dir), ".upload-infra.tar.gz"))
	assert.Equal(t, 2, out.Analysis.FileCount)
	assert.Equal(t, 2, out.Analysis.DirectoryCount)

	got, err := u.Get(context.Background(), &GetInput{ID: out.Project.ID})
	require.NoError(t, err)
	assert.True(t, got.Project.Extracted)
	assert.Equal(t, "terraform", got.Project.ProjectType)
}

func TestUploadFailures(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	u.MaxUploadBytes = 8

	_, err := u.Upload(ctx, &UploadInput{Filename: "tool.exe", Body: strings.NewReader("MZ")})
	assert.ErrorIs(t, err, model.ErrProjectInvalid)

	_, err = u.Upload(ctx, &UploadInput{Filename: "", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, model.ErrProjectInvalid)

	_, err = u.Upload(ctx, &UploadInput{Filename: "big.tf", Body: strings.NewReader("0123456789")})
	assert.ErrorIs(t, err, model.ErrUploadTooLarge)

	_, err = u.Upload(ctx, &UploadInput{Filename: "bad.zip", Body: strings.NewReader("notazip")})
	assert.ErrorIs(t, err, model.ErrProjectInvalid)
	assert.Contains(t, err.Error(), "failed to extract archive")

	list, err := u.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list.Projects, "failed uploads leave no project behind")
}

func TestAnalyzeStructure(t *testing.T) {
	root := t.TempDir()
	for name, body := range map[string]string{
		"app.py":             "print('hi')\n",
		"docker-compose.yml": "services: {}\n",
		"k8s/deploy.yaml":    "kind: Deployment\n",
		"requirements.txt":   "flask\n",
		"src/util.py":        "",
	} {
		require.NoError(t, writeFile(filepath.Join(root, filepath.FromSlash(name)), []byte(body)))
	}

	st, err := AnalyzeStructure(root)
	require.NoError(t, err)
	want := &model.ProjectStructure{
		ProjectType:          "docker",
		DetectedTechnologies: []string{"docker", "kubernetes", "python"},
		FileCount:            5,
		DirectoryCount:       2,
		MainFiles:            []string{"app.py"},
		ConfigurationFiles:   []string{"docker-compose.yml", "requirements.txt"},
		SourceDirectories:    []string{"src"},
		TotalSize:            int64(len("print('hi')\n") + len("services: {}\n") + len("kind: Deployment\n") + len("flask\n")),
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("structure mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Docker configuration detected. Review Dockerfile and docker-compose files."}, Recommendations(st))
}

func TestRecommendationsPython(t *testing.T) {
	got := Recommendations(&model.ProjectStructure{ProjectType: "python", FileCount: 1001, TotalSize: 200 << 20})
	assert.Equal(t, []string{
		"Large project detected. Consider focusing analysis on specific modules.",
		"Consider adding a requirements.txt file to track dependencies.",
		"Consider adding a tests directory for unit tests.",
		"Large project size. Ensure no sensitive files or large binaries are included.",
	}, got)
}

func TestFileOperationsTrackChanges(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	id := upload(t, u, "notes.md", "# notes\n").Project.ID

	created, err := u.CreateFile(ctx, &CreateFileInput{ID: id, Path: "envs/dev/main.tf", Content: "locals {}\n"})
	require.NoError(t, err)
	require.NotNil(t, created.Change)
	assert.Equal(t, "Created new file with 10 bytes", created.Change.Summary)
	assert.Empty(t, created.Change.OldHash)

	_, err = u.CreateFile(ctx, &CreateFileInput{ID: id, Path: "envs/dev/main.tf"})
	assert.ErrorIs(t, err, model.ErrProjectFileExists)

	dir, err := u.CreateFile(ctx, &CreateFileInput{ID: id, Path: "envs/prod", IsDirectory: true})
	require.NoError(t, err)
	assert.Nil(t, dir.Change)

	same, err := u.WriteFile(ctx, &WriteFileInput{ID: id, Path: "envs/dev/main.tf", Content: "locals {}\n"})
	require.NoError(t, err)
	assert.Nil(t, same.Change, "identical content records nothing")

	updated, err := u.WriteFile(ctx, &WriteFileInput{ID: id, Path: "envs/dev/main.tf", Content: "locals {\n  é = 1\n}\n"})
	require.NoError(t, err)
	require.NotNil(t, updated.Change)
	assert.Equal(t, model.FileOperationUpdate, updated.Change.Operation)
	assert.Equal(t, "Updated file: 4 lines, 19 characters", updated.Change.Summary)
	assert.Equal(t, created.Change.NewHash, updated.Change.OldHash)

	read, err := u.ReadFile(ctx, &ReadFileInput{ID: id, Path: "envs/dev/main.tf"})
	require.NoError(t, err)
	assert.Equal(t, "utf-8", read.File.Encoding)
	assert.Equal(t, 4, read.File.Lines)

	deleted, err := u.DeleteFile(ctx, &DeleteFileInput{ID: id, Path: "envs/dev/main.tf"})
	require.NoError(t, err)
	assert.Equal(t, "File deleted", deleted.Change.Summary)
	assert.Empty(t, deleted.Change.NewHash)

	gone, err := u.DeleteFile(ctx, &DeleteFileInput{ID: id, Path: "envs/prod"})
	require.NoError(t, err)
	assert.Equal(t, "Directory deleted", gone.Change.Summary)

	_, err = u.ReadFile(ctx, &ReadFileInput{ID: id, Path: "envs/dev/main.tf"})
	assert.ErrorIs(t, err, model.ErrProjectFileNotFound)

	changes, err := u.Changes(ctx, &ChangesInput{ID: id})
	require.NoError(t, err)
	var ops []string
	for _, c := range changes.Changes {
		ops = append(ops, c.Operation)
	}
	assert.Equal(t, []string{"delete", "delete", "update", "create"}, ops)
	assert.Equal(t, 4, changes.Summary.TotalChanges)
	assert.Equal(t, 2, changes.Summary.FilesModified)
	assert.Equal(t, map[string]int{"create": 1, "update": 1, "delete": 2}, changes.Summary.Operations)
	require.NotNil(t, changes.Summary.LastChange)
	assert.Equal(t, changes.Changes[0].Timestamp, *changes.Summary.LastChange)

	limited, err := u.Changes(ctx, &ChangesInput{ID: id, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited.Changes, 1)
	assert.Equal(t, 4, limited.Summary.TotalChanges)

	require.NoError(t, u.ClearChanges(ctx, &ClearChangesInput{ID: id}))
	changes, err = u.Changes(ctx, &ChangesInput{ID: id})
	require.NoError(t, err)
	assert.Empty(t, changes.Changes)
	assert.Nil(t, changes.Summary.LastChange)
}

func TestFilePathsStayInsideProject(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	id := upload(t, u, "main.tf", "").Project.ID

	for _, p := range []string{"../main.tf", "/etc/passwd", "a/../../x", "", "."} {
		_, err := u.ReadFile(ctx, &ReadFileInput{ID: id, Path: p})
		assert.ErrorIs(t, err, model.ErrProjectInvalid, p)
		_, err = u.WriteFile(ctx, &WriteFileInput{ID: id, Path: p, Content: "x"})
		assert.ErrorIs(t, err, model.ErrProjectInvalid, p)
	}

	_, err := u.ReadFile(ctx, &ReadFileInput{ID: "not-a-uuid", Path: "main.tf"})
	assert.ErrorIs(t, err, model.ErrProjectInvalid)
	_, err = u.ReadFile(ctx, &ReadFileInput{ID: uuid.NewString(), Path: "main.tf"})
	assert.ErrorIs(t, err, model.ErrProjectNotFound)
}

func TestReadFileContentKinds(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	p := upload(t, u, "main.tf", "").Project

	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, "latin.txt"), []byte("caf\xe9\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, "blob.bin"), []byte{0x7f, 'E', 'L', 'F', 0}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, "huge.txt"), bytes.Repeat([]byte("a"), maxReadBytes+1), 0644))

	latin, err := u.ReadFile(ctx, &ReadFileInput{ID: p.ID, Path: "latin.txt"})
	require.NoError(t, err)
	assert.Equal(t, "latin-1", latin.File.Encoding)
	assert.Equal(t, "café\n", latin.File.Content)
	assert.Equal(t, 2, latin.File.Lines)

	bin, err := u.ReadFile(ctx, &ReadFileInput{ID: p.ID, Path: "blob.bin"})
	require.NoError(t, err)
	assert.True(t, bin.File.Binary)
	assert.Empty(t, bin.File.Content)
	assert.Equal(t, int64(5), bin.File.Size)

	huge, err := u.ReadFile(ctx, &ReadFileInput{ID: p.ID, Path: "huge.txt"})
	require.NoError(t, err)
	assert.Empty(t, huge.File.Content)
	assert.Contains(t, huge.File.Error, "File too large")
}

func TestFilesTree(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	p := upload(t, u, "main.tf", "abc").Project
	require.NoError(t, writeFile(filepath.Join(p.Dir, "a", "b", "c", "d", "deep.tf"), []byte("x")))

	out, err := u.Files(ctx, &FilesInput{ID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, FileStats{TotalFiles: 2, TotalSize: 4}, out.Stats)

	root := out.Tree
	require.Len(t, root.Children, 2)
	assert.Equal(t, "a", root.Children[0].Name)
	assert.Equal(t, &FileNode{Name: "main.tf", Type: NodeFile, Size: 3}, root.Children[1])

	c := root.Children[0].Children[0].Children[0]
	assert.Equal(t, "c", c.Name)
	require.Len(t, c.Children, 1)
	assert.Equal(t, &FileNode{Name: "d", Type: NodeDirectory, Truncated: true}, c.Children[0])
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	u, inf := newTestUseCase(t)
	p := upload(t, u, "main.tf", strings.Repeat("#", maxPromptChars+10)).Project
	_, err := u.CreateFile(ctx, &CreateFileInput{ID: p.ID, Path: "variables.tf", Content: "variable \"region\" {}\n"})
	require.NoError(t, err)

	dry, err := u.Analyze(ctx, &AnalyzeInput{ProjectID: p.ID, AnalysisType: AnalysisSecurity, Files: []string{"main.tf", "missing.tf"}, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, inf.prompts)
	assert.Empty(t, dry.Response)
	require.Len(t, dry.Files, 1)
	assert.Equal(t, "main.tf", dry.Files[0].Path)
	assert.True(t, strings.HasPrefix(dry.Prompt, "Analyze this project for security issues:\n\nProject Type: terraform\n"))
	assert.Contains(t, dry.Prompt, "Configuration files: main.tf\n")
	assert.Contains(t, dry.Prompt, "\n--- main.tf ---\n")
	assert.Contains(t, dry.Prompt, "\n... (content truncated)")
	assert.Contains(t, dry.Prompt, "\n\nRecent changes:\n- create variables.tf (")

	out, err := u.Analyze(ctx, &AnalyzeInput{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, AnalysisGeneral, out.AnalysisType)
	require.Len(t, inf.prompts, 1)
	assert.Contains(t, inf.prompts[0], "Provide a general analysis of this project:")
	assert.Equal(t, "## Findings\n\nLooks fine.", out.Response)
	assert.Contains(t, out.HTML, "<h2")
	assert.Equal(t, "codellama:13b-instruct", out.Model)

	_, err = u.Analyze(ctx, &AnalyzeInput{ProjectID: p.ID, AnalysisType: "performance"})
	assert.ErrorIs(t, err, model.ErrProjectInvalid)
	_, err = u.Analyze(ctx, &AnalyzeInput{ProjectID: uuid.NewString()})
	assert.ErrorIs(t, err, model.ErrProjectNotFound)
	_, err = u.Analyze(ctx, &AnalyzeInput{})
	assert.ErrorIs(t, err, model.ErrProjectInvalid)
}

func TestChatContext(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	p := upload(t, u, "app.py", "print('hi')\n").Project

	got, err := u.ChatContext(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Project Context:\n- Type: unknown\n- Technologies: \n- Files: 1\n- Main files: app.py\n\n", got)

	_, err = u.CreateFile(ctx, &CreateFileInput{ID: p.ID, Path: "requirements.txt", Content: "flask\n"})
	require.NoError(t, err)
	got, err = u.ChatContext(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, got, "- Type: python\n")
	assert.Contains(t, got, "Recent Changes:\n- create requirements.txt (2026-10-16T09:00:")
	assert.True(t, strings.HasSuffix(got, ")\n\n"))

	_, err = u.ChatContext(ctx, uuid.NewString())
	assert.ErrorIs(t, err, model.ErrProjectNotFound)
}

func TestDeleteAndCleanupStale(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUseCase(t)
	old := upload(t, u, "old.tf", "").Project
	_, err := u.WriteFile(ctx, &WriteFileInput{ID: old.ID, Path: "old.tf", Content: "x"})
	require.NoError(t, err)

	u.now = tick(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	fresh := upload(t, u, "fresh.tf", "").Project

	out, err := u.CleanupStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, out.Removed)
	_, err = u.Get(ctx, &GetInput{ID: old.ID})
	assert.ErrorIs(t, err, model.ErrProjectNotFound)
	changes, err := u.Repos.Change.ListByProject(ctx, old.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, changes)

	list, err := u.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, fresh.ID, list.Projects[0].ID)

	require.NoError(t, u.Delete(ctx, &DeleteInput{ID: fresh.ID}))
	assert.ErrorIs(t, u.Delete(ctx, &DeleteInput{ID: fresh.ID}), model.ErrProjectNotFound)
}
