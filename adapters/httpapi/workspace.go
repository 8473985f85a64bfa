package httpapi

import (
	"net/http"
	"strconv"

	"github.com/kompox/sandboxops/usecase/workspace"
)

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.List(r.Context(), &workspace.ListInput{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var in workspace.CreateInput
	if err := decodeJSON(w, r, &in, true); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Workspace.Create(r.Context(), &in)
	if err != nil {
		var body errorBody
		if out != nil && out.Workspace != nil {
			body.WorkspaceID = out.Workspace.ID
		}
		writeErrorBody(w, err, body)
		return
	}
	writeOK(w, http.StatusCreated, out)
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.Get(r.Context(), &workspace.GetInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	in := &workspace.DeleteInput{ID: r.PathValue("id")}
	if v := r.URL.Query().Get("destroy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, badRequestf("invalid destroy flag %q", v))
			return
		}
		in.Destroy = b
	}
	out, err := s.Workspace.Delete(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) initWorkspace(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.Init(r.Context(), &workspace.InitInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) planWorkspace(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.Plan(r.Context(), &workspace.PlanInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) applyWorkspace(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.Apply(r.Context(), &workspace.ApplyInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) destroyWorkspace(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.Destroy(r.Context(), &workspace.DestroyInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) updateVariables(w http.ResponseWriter, r *http.Request) {
	var in workspace.UpdateVariablesInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	in.ID = r.PathValue("id")
	out, err := s.Workspace.UpdateVariables(r.Context(), &in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) workspaceRuns(w http.ResponseWriter, r *http.Request) {
	out, err := s.Workspace.Runs(r.Context(), &workspace.RunsInput{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}
