package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkitahara/idreg/internal/logging"
)

// handleStorageEntries lists a remote storage folder for the file explorer.
// An empty or missing path parameter lists the root.
func (s *Server) handleStorageEntries(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	listing, err := s.service.Explore(r.Context(), path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, listing)
}

// handlePreviewDiff returns what a save would change as diff spans.
func (s *Server) handlePreviewDiff(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	diff, err := s.service.PreviewDiff(sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, diff)
}

// handleSave patches the session's edits into its original text and stores
// the result remotely. The body may carry {"path": ...} to save somewhere
// other than the session's origin; upload-born sessions must supply it.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.service.SaveRemote(r.Context(), sessionID, req.Path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if result.Fallback {
		logging.WithFields(r.Context(), "session_id", sessionID, "path", result.Path).
			Warn("saved with encoding fallback", "encoding", result.Encoding)
	}

	writeJSON(w, result)
}

// handleExport downloads the patched file without touching remote storage.
// The response body is the encoded file; encoding details ride in headers.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	result, err := s.service.Export(sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// FormatMediaType emits the RFC 2231 filename* form for names that do
	// not fit in plain ASCII, which registry file names usually do not.
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.FileName})

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Registry-Encoding", result.Encoding)
	if result.Fallback {
		w.Header().Set("X-Encoding-Fallback", "true")
	}
	w.Write(result.Data)
}
