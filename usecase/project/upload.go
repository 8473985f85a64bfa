package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/archive"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/metrics"
)

// AllowedExtensions are the upload filename suffixes accepted by Upload.
var AllowedExtensions = []string{
	"zip", "tar", "gz", "tgz", "bz2", "xz", "zst",
	"tar.gz", "tar.bz2", "tar.xz", "tar.zst",
	"tf", "tfvars", "hcl", "go",
	"py", "js", "html", "css", "json", "txt", "md", "yml", "yaml",
}

// AllowedFile reports whether name carries one of AllowedExtensions.
func AllowedFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range AllowedExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// UploadInput is one uploaded file.
type UploadInput struct {
	Filename string
	Body     io.Reader
}

// UploadOutput describes the created project.
type UploadOutput struct {
	Project         *model.Project          `json:"project"`
	Analysis        *model.ProjectStructure `json:"analysis"`
	Recommendations []string                `json:"recommendations"`
}

// Upload stores a file as a new project. Archives are extracted into the
// project root and a single top-level directory is flattened away.
func (u *UseCase) Upload(ctx context.Context, in *UploadInput) (out *UploadOutput, err error) {
	defer func() { metrics.ProjectUploads.WithLabelValues(metrics.Result(err)).Inc() }()
	if in == nil || in.Body == nil {
		return nil, fmt.Errorf("%w: no file provided", model.ErrProjectInvalid)
	}
	name := path.Base(strings.ReplaceAll(in.Filename, `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return nil, fmt.Errorf("%w: no file selected", model.ErrProjectInvalid)
	}
	if !AllowedFile(name) {
		return nil, fmt.Errorf("%w: file type not allowed, allowed types: %s", model.ErrProjectInvalid, strings.Join(AllowedExtensions, ", "))
	}

	p := &model.Project{Filename: name, CreatedAt: u.clock().UTC()}
	if err := u.Repos.Project.Create(ctx, p); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).With("project", p.ID, "filename", name)
	defer func() {
		if err != nil {
			if derr := u.Repos.Project.Delete(context.WithoutCancel(ctx), p.ID); derr != nil {
				logger.Warn(ctx, "failed to remove partial project", "error", derr)
			}
		}
	}()

	if archive.Detect(name) == archive.FormatNone {
		if err := u.save(in.Body, filepath.Join(p.Dir, name)); err != nil {
			return nil, err
		}
	} else {
		if err := u.extract(ctx, in.Body, p); err != nil {
			return nil, err
		}
		p.Extracted = true
		if err := u.Repos.Project.Update(ctx, p); err != nil {
			return nil, err
		}
	}

	st, err := AnalyzeStructure(p.Dir)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "project uploaded", "extracted", p.Extracted, "files", st.FileCount, "type", st.ProjectType)
	return &UploadOutput{Project: p, Analysis: st, Recommendations: Recommendations(st)}, nil
}

// save copies body to dst, failing with model.ErrUploadTooLarge past the limit.
func (u *UseCase) save(body io.Reader, dst string) error {
	limit := u.UploadLimit()
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(body, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	if n > limit {
		return fmt.Errorf("%w: more than %d bytes", model.ErrUploadTooLarge, limit)
	}
	return nil
}

func (u *UseCase) extract(ctx context.Context, body io.Reader, p *model.Project) error {
	tmp := filepath.Join(filepath.Dir(p.Dir), ".upload-"+p.Filename)
	if err := u.save(body, tmp); err != nil {
		return err
	}
	defer os.Remove(tmp)

	limits := archive.Limits{MaxFiles: maxExtractFiles, MaxBytes: extractBytesFactor * u.UploadLimit()}
	if err := archive.Extract(ctx, tmp, p.Dir, limits); err != nil {
		if errors.Is(err, archive.ErrLimit) {
			return fmt.Errorf("%w: %v", model.ErrUploadTooLarge, err)
		}
		return fmt.Errorf("%w: failed to extract archive: %v", model.ErrProjectInvalid, err)
	}
	if _, err := archive.Flatten(p.Dir); err != nil {
		return fmt.Errorf("flattening archive: %w", err)
	}
	return nil
}
