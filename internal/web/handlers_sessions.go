package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkitahara/idreg/internal/core"
	"github.com/mkitahara/idreg/internal/storage"
)

// handleIndex serves the embedded editor page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "editor page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// healthResponse is the liveness payload, including the service snapshot so
// operators can see session and load pressure at a glance.
type healthResponse struct {
	Status string `json:"status"`
	core.ServiceStatus
}

// handleHealth reports liveness and the current service status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:        "ok",
		ServiceStatus: s.service.Status(),
	})
}

// handleUpload opens an editing session from an uploaded CSV file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Load.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	view, err := s.service.LoadUpload(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, view)
}

// handleLoadRemote opens an editing session from a file in remote storage.
// An empty path falls back to the configured registry file. A missing file
// answers 404 with the parent directory listing in the error payload.
func (s *Server) handleLoadRemote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	path := req.Path
	if path == "" {
		path = s.service.DefaultRemotePath()
	}

	view, listing, err := s.service.LoadRemote(r.Context(), path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if listing != nil {
		respondErrorJSON(w, core.MapError(storage.ErrNotFound), http.StatusNotFound, listing)
		return
	}

	writeJSON(w, view)
}

// handleSessionView returns the current state of a session.
func (s *Server) handleSessionView(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	view, err := s.service.View(sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, view)
}

// handleCloseSession discards a session without saving.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	if err := s.service.CloseSession(sessionID); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"closed"}`))
}
