package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/usecase/project"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// uploadProject streams the "file" part of a multipart form into a new project.
func (s *Server) uploadProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Project.UploadLimit()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, badRequestf("expected a multipart form: %v", err))
		return
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeError(w, badRequestf("no file provided"))
			return
		}
		if err != nil {
			writeError(w, uploadError(err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		out, err := s.Project.Upload(r.Context(), &project.UploadInput{Filename: part.FileName(), Body: part})
		part.Close()
		if err != nil {
			writeError(w, uploadError(err))
			return
		}
		writeOK(w, http.StatusCreated, out)
		return
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request exceeds %d bytes", model.ErrUploadTooLarge, tooLarge.Limit)
	}
	return err
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.Project.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	out, err := s.Project.Get(r.Context(), &project.GetInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Project.Delete(r.Context(), &project.DeleteInput{ID: id}); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"projectId": id})
}

func (s *Server) projectFiles(w http.ResponseWriter, r *http.Request) {
	out, err := s.Project.Files(r.Context(), &project.FilesInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) readProjectFile(w http.ResponseWriter, r *http.Request) {
	out, err := s.Project.ReadFile(r.Context(), &project.ReadFileInput{ID: r.PathValue("id"), Path: r.PathValue("path")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) writeProjectFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content *string `json:"content"`
	}
	if err := decodeJSON(w, r, &body, false); err != nil {
		writeError(w, err)
		return
	}
	if body.Content == nil {
		writeError(w, badRequestf("no content provided"))
		return
	}
	out, err := s.Project.WriteFile(r.Context(), &project.WriteFileInput{
		ID:      r.PathValue("id"),
		Path:    r.PathValue("path"),
		Content: *body.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) createProjectFile(w http.ResponseWriter, r *http.Request) {
	var in project.CreateFileInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	if in.Path == "" {
		writeError(w, badRequestf("no path provided"))
		return
	}
	in.ID = r.PathValue("id")
	out, err := s.Project.CreateFile(r.Context(), &in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, out)
}

func (s *Server) deleteProjectFile(w http.ResponseWriter, r *http.Request) {
	out, err := s.Project.DeleteFile(r.Context(), &project.DeleteFileInput{ID: r.PathValue("id"), Path: r.PathValue("path")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) projectChanges(w http.ResponseWriter, r *http.Request) {
	in := &project.ChangesInput{ID: r.PathValue("id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, badRequestf("invalid limit %q", v))
			return
		}
		in.Limit = n
	}
	out, err := s.Project.Changes(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) clearProjectChanges(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Project.ClearChanges(r.Context(), &project.ClearChangesInput{ID: id}); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"projectId": id})
}

func (s *Server) analyzeProject(w http.ResponseWriter, r *http.Request) {
	var in project.AnalyzeInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Project.Analyze(r.Context(), &in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}
