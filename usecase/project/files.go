package project

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/kompox/sandboxops/domain/model"
)

// FileNode is one entry of a project file tree.
type FileNode struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Size      int64       `json:"size,omitempty"`
	Children  []*FileNode `json:"children,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// File node types.
const (
	NodeFile      = "file"
	NodeDirectory = "directory"
)

// FileStats totals the files of a project.
type FileStats struct {
	TotalFiles int   `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
}

// FileContent is a file read for display.
type FileContent struct {
	Content  string `json:"content"`
	Binary   bool   `json:"binary"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding,omitempty"`
	Lines    int    `json:"lines"`
	// Error explains why Content is empty, such as an oversized or binary file.
	Error string `json:"error,omitempty"`
}

type FilesInput struct {
	ID string `json:"id"`
}

type FilesOutput struct {
	ProjectID string    `json:"projectId"`
	Tree      *FileNode `json:"fileTree"`
	Stats     FileStats `json:"stats"`
}

// Files returns the project tree down to a fixed depth plus totals over all files.
func (u *UseCase) Files(ctx context.Context, in *FilesInput) (*FilesOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	st, err := AnalyzeStructure(p.Dir)
	if err != nil {
		return nil, err
	}
	return &FilesOutput{
		ProjectID: p.ID,
		Tree:      buildTree(p.Dir, ".", 0),
		Stats:     FileStats{TotalFiles: st.FileCount, TotalSize: st.TotalSize},
	}, nil
}

func buildTree(path, name string, depth int) *FileNode {
	if depth > maxTreeDepth {
		return &FileNode{Name: name, Type: NodeDirectory, Truncated: true}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &FileNode{Name: name, Type: "error", Error: err.Error()}
	}
	if !info.IsDir() {
		return &FileNode{Name: name, Type: NodeFile, Size: info.Size()}
	}
	node := &FileNode{Name: name, Type: NodeDirectory, Children: []*FileNode{}}
	entries, err := os.ReadDir(path)
	if err != nil {
		node.Error = err.Error()
		return node
	}
	for _, e := range entries {
		node.Children = append(node.Children, buildTree(filepath.Join(path, e.Name()), e.Name(), depth+1))
	}
	return node
}

type ReadFileInput struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type ReadFileOutput struct {
	ProjectID string       `json:"projectId"`
	Path      string       `json:"filePath"`
	File      *FileContent `json:"fileInfo"`
}

// ReadFile returns the content of one project file.
func (u *UseCase) ReadFile(ctx context.Context, in *ReadFileInput) (*ReadFileOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	full, err := resolve(p, in.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", model.ErrProjectFileNotFound, in.Path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a file", model.ErrProjectInvalid, in.Path)
	}
	fc, err := readContent(full, maxReadBytes)
	if err != nil {
		return nil, err
	}
	return &ReadFileOutput{ProjectID: p.ID, Path: in.Path, File: fc}, nil
}

// readContent reads a file for display. Oversized and binary files are
// reported through FileContent.Error rather than failing.
func readContent(path string, max int64) (*FileContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > max {
		return &FileContent{
			Size:  info.Size(),
			Error: fmt.Sprintf("File too large (%d bytes). Maximum size: %d bytes", info.Size(), max),
		}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc := &FileContent{Size: int64(len(data))}
	switch {
	case bytes.IndexByte(data, 0) >= 0:
		fc.Binary = true
		fc.Error = "Binary file - content not displayable"
		return fc, nil
	case utf8.Valid(data):
		fc.Content, fc.Encoding = string(data), "utf-8"
	default:
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		fc.Content, fc.Encoding = string(text), "latin-1"
	}
	fc.Lines = countLines(fc.Content)
	return fc, nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

type WriteFileInput struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

type WriteFileOutput struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"filePath"`
	// Change is nil when the content was unchanged.
	Change *model.FileChange `json:"change"`
}

// WriteFile replaces or creates a project file and records the change.
func (u *UseCase) WriteFile(ctx context.Context, in *WriteFileInput) (*WriteFileOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	full, err := resolve(p, in.Path)
	if err != nil {
		return nil, err
	}
	op := model.FileOperationCreate
	var old []byte
	if info, err := os.Stat(full); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", model.ErrProjectInvalid, in.Path)
		}
		if old, err = os.ReadFile(full); err != nil {
			return nil, err
		}
		op = model.FileOperationUpdate
	}
	if err := writeFile(full, []byte(in.Content)); err != nil {
		return nil, err
	}
	c, err := u.track(ctx, p.ID, in.Path, op, old, []byte(in.Content), "")
	if err != nil {
		return nil, err
	}
	return &WriteFileOutput{ProjectID: p.ID, Path: in.Path, Change: c}, nil
}

type CreateFileInput struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	IsDirectory bool   `json:"isDirectory"`
}

type CreateFileOutput struct {
	ProjectID   string            `json:"projectId"`
	Path        string            `json:"filePath"`
	IsDirectory bool              `json:"isDirectory"`
	Change      *model.FileChange `json:"change,omitempty"`
}

// CreateFile adds a new file or directory. Existing paths are rejected.
func (u *UseCase) CreateFile(ctx context.Context, in *CreateFileInput) (*CreateFileOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	full, err := resolve(p, in.Path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Lstat(full); err == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrProjectFileExists, in.Path)
	}
	out := &CreateFileOutput{ProjectID: p.ID, Path: in.Path, IsDirectory: in.IsDirectory}
	if in.IsDirectory {
		if err := os.MkdirAll(full, 0755); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := writeFile(full, []byte(in.Content)); err != nil {
		return nil, err
	}
	if out.Change, err = u.track(ctx, p.ID, in.Path, model.FileOperationCreate, nil, []byte(in.Content), ""); err != nil {
		return nil, err
	}
	return out, nil
}

type DeleteFileInput struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type DeleteFileOutput struct {
	ProjectID string            `json:"projectId"`
	Path      string            `json:"filePath"`
	Change    *model.FileChange `json:"change"`
}

// DeleteFile removes a file or a directory tree and records the deletion.
func (u *UseCase) DeleteFile(ctx context.Context, in *DeleteFileInput) (*DeleteFileOutput, error) {
	p, err := u.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	full, err := resolve(p, in.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", model.ErrProjectFileNotFound, in.Path)
		}
		return nil, err
	}
	var old []byte
	if info.Mode().IsRegular() {
		if old, err = os.ReadFile(full); err != nil {
			return nil, err
		}
	}
	if err := os.RemoveAll(full); err != nil {
		return nil, fmt.Errorf("deleting %s: %w", in.Path, err)
	}
	summary := ""
	if info.IsDir() {
		summary = "Directory deleted"
	}
	c, err := u.track(ctx, p.ID, in.Path, model.FileOperationDelete, old, nil, summary)
	if err != nil {
		return nil, err
	}
	return &DeleteFileOutput{ProjectID: p.ID, Path: in.Path, Change: c}, nil
}

// resolve maps a slash-separated project path to a path under the project root.
func resolve(p *model.Project, rel string) (string, error) {
	clean := filepath.FromSlash(strings.TrimSpace(rel))
	if !filepath.IsLocal(clean) || filepath.Clean(clean) == "." {
		return "", fmt.Errorf("%w: invalid file path %q", model.ErrProjectInvalid, rel)
	}
	return filepath.Join(p.Dir, clean), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (u *UseCase) get(ctx context.Context, id string) (*model.Project, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: project id required", model.ErrProjectInvalid)
	}
	return u.Repos.Project.Get(ctx, id)
}
