package httpapi

import (
	"net/http"

	"github.com/kompox/sandboxops/usecase/catalog"
)

func (s *Server) resourceTypes(w http.ResponseWriter, r *http.Request) {
	out, err := s.Catalog.ResourceTypes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) help(w http.ResponseWriter, r *http.Request) {
	out, err := s.Catalog.Help(r.Context(), &catalog.HelpInput{
		Category: r.PathValue("category"),
		Resource: r.PathValue("resource"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var in catalog.AnalyzeInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Catalog.Analyze(r.Context(), &in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}
