package httpapi

import (
	"net/http"

	"github.com/kompox/sandboxops/usecase/chat"
	"github.com/kompox/sandboxops/usecase/inference"
)

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var in chat.SendInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Chat.Send(r.Context(), &in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) pullModel(w http.ResponseWriter, r *http.Request) {
	var in inference.PullInput
	if err := decodeJSON(w, r, &in, true); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Inference.Pull(r.Context(), &in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusAccepted, out)
}

func (s *Server) pullProgress(w http.ResponseWriter, r *http.Request) {
	out, err := s.Inference.Progress(r.Context(), &inference.ProgressInput{Model: r.URL.Query().Get("model")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (s *Server) resetPull(w http.ResponseWriter, r *http.Request) {
	out, err := s.Inference.ResetDownload(r.Context(), &inference.ResetDownloadInput{Model: r.URL.Query().Get("model")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}
