// Package httpapi exposes the sandbox use cases over a JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/metrics"
	"github.com/kompox/sandboxops/usecase/catalog"
	"github.com/kompox/sandboxops/usecase/chat"
	"github.com/kompox/sandboxops/usecase/inference"
	"github.com/kompox/sandboxops/usecase/project"
	"github.com/kompox/sandboxops/usecase/workspace"
)

// Server routes API requests to the use cases.
type Server struct {
	Workspace *workspace.UseCase
	Chat      *chat.UseCase
	Inference *inference.UseCase
	Catalog   *catalog.UseCase
	Project   *project.UseCase
	// Version is reported by /api/health.
	Version string
	Logger  logging.Logger
}

// Handler returns the instrumented API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	logger := s.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return instrument(logger, mux)
}

// Register adds all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("GET /api/debug", s.debug)

	mux.HandleFunc("POST /api/chat", s.chat)

	mux.HandleFunc("POST /api/models/pull", s.pullModel)
	mux.HandleFunc("GET /api/models/pull", s.pullProgress)
	mux.HandleFunc("DELETE /api/models/pull", s.resetPull)

	mux.HandleFunc("GET /api/terraform/resource-types", s.resourceTypes)
	mux.HandleFunc("GET /api/terraform/help/{category}", s.help)
	mux.HandleFunc("GET /api/terraform/help/{category}/{resource}", s.help)
	mux.HandleFunc("POST /api/terraform/analyze", s.analyze)

	mux.HandleFunc("GET /api/terraform/workspaces", s.listWorkspaces)
	mux.HandleFunc("POST /api/terraform/workspaces", s.createWorkspace)
	mux.HandleFunc("GET /api/terraform/workspaces/{id}", s.getWorkspace)
	mux.HandleFunc("DELETE /api/terraform/workspaces/{id}", s.deleteWorkspace)
	mux.HandleFunc("POST /api/terraform/workspaces/{id}/init", s.initWorkspace)
	mux.HandleFunc("POST /api/terraform/workspaces/{id}/plan", s.planWorkspace)
	mux.HandleFunc("POST /api/terraform/workspaces/{id}/apply", s.applyWorkspace)
	mux.HandleFunc("POST /api/terraform/workspaces/{id}/destroy", s.destroyWorkspace)
	mux.HandleFunc("PUT /api/terraform/workspaces/{id}/variables", s.updateVariables)
	mux.HandleFunc("GET /api/terraform/workspaces/{id}/runs", s.workspaceRuns)

	mux.HandleFunc("POST /api/upload", s.uploadProject)
	mux.HandleFunc("POST /api/analyze", s.analyzeProject)
	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.getProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.deleteProject)
	mux.HandleFunc("DELETE /api/cleanup/{id}", s.deleteProject)
	mux.HandleFunc("GET /api/projects/{id}/files", s.projectFiles)
	mux.HandleFunc("POST /api/projects/{id}/files", s.createProjectFile)
	mux.HandleFunc("GET /api/projects/{id}/files/{path...}", s.readProjectFile)
	mux.HandleFunc("PUT /api/projects/{id}/files/{path...}", s.writeProjectFile)
	mux.HandleFunc("DELETE /api/projects/{id}/files/{path...}", s.deleteProjectFile)
	mux.HandleFunc("GET /api/projects/{id}/changes", s.projectChanges)
	mux.HandleFunc("DELETE /api/projects/{id}/changes", s.clearProjectChanges)

	mux.Handle("GET /metrics", metrics.Handler())
}
