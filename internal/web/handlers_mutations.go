package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleUpdateCell overwrites one cell of one row.
func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	var req struct {
		Row    int    `json:"row"`
		Column string `json:"column"`
		Value  string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Value may legitimately be empty (clearing a cell); Column may not.
	if req.Column == "" {
		writeError(w, http.StatusBadRequest, "column is required")
		return
	}

	view, err := s.service.UpdateCell(sessionID, req.Row, req.Column, req.Value)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, view)
}

// handleAddYear appends a new year row. Empty and duplicate years are
// rejected by the service with their own error codes.
func (s *Server) handleAddYear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	var req struct {
		Year string `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := s.service.AddYear(sessionID, req.Year)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, view)
}

// handleDeleteRows deletes the rows at the given table indexes.
func (s *Server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	var req struct {
		Rows []int `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "no rows specified")
		return
	}

	view, err := s.service.DeleteRows(sessionID, req.Rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, view)
}

// handleResetEdits drops all edits and restores the loaded file's state.
func (s *Server) handleResetEdits(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	view, err := s.service.ResetEdits(sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, view)
}
