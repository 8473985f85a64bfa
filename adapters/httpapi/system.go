package httpapi

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kompox/sandboxops/usecase/inference"
)

const healthCheckTimeout = 5 * time.Second

type provisionerHealth struct {
	ID        string `json:"id"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string                  `json:"status"`
	Timestamp   time.Time               `json:"timestamp"`
	Version     string                  `json:"version,omitempty"`
	Inference   *inference.StatusOutput `json:"inference"`
	Provisioner *provisionerHealth      `json:"provisioner"`
	Downloads   []*inference.Progress   `json:"downloads"`
}

// health always answers 200; degraded dependencies show in the body.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Version: s.Version}
	var g errgroup.Group
	g.Go(func() error {
		st, err := s.Inference.Status(ctx)
		if err == nil {
			resp.Inference = st
		}
		return nil
	})
	g.Go(func() error {
		resp.Provisioner = s.provisionerHealth(ctx)
		return nil
	})
	_ = g.Wait()

	if resp.Inference == nil || resp.Inference.Status != inference.StatusOK || !resp.Provisioner.Installed {
		resp.Status = "degraded"
	}
	resp.Downloads = s.Inference.Downloads()
	writeOK(w, http.StatusOK, resp)
}

func (s *Server) provisionerHealth(ctx context.Context) *provisionerHealth {
	p := s.Workspace.Provisioner
	out := &provisionerHealth{ID: p.ID()}
	v, err := p.Version(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Installed = true
	out.Version = v
	return out
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	out, err := s.Inference.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

type debugResponse struct {
	*inference.DebugOutput
	Provisioner *provisionerHealth `json:"provisioner"`
	ModuleDir   string             `json:"moduleSource,omitempty"`
}

func (s *Server) debug(w http.ResponseWriter, r *http.Request) {
	out, err := s.Inference.Debug(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, debugResponse{
		DebugOutput: out,
		Provisioner: s.provisionerHealth(r.Context()),
		ModuleDir:   s.Workspace.ModuleSource,
	})
}
