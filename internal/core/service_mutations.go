package core

import (
	"github.com/mkitahara/idreg/internal/registry"
)

// UpdateCell changes one managed cell. column may be a field ID ("year",
// "distributedPid", ...) or the canonical Japanese header name. The year
// column is rejected; add and delete rows to change years.
func (s *Service) UpdateCell(sessionID string, row int, column, value string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	if err := sess.Table.UpdateCell(row, column, value); err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// AddYear appends a row for a new year with empty ID columns. The table
// stays sorted by year; the new row lands at the end of the file on save.
func (s *Service) AddYear(sessionID, year string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	if err := sess.Table.AddYear(year); err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// DeleteRows removes rows by their current table indexes. Either every index
// is valid and all rows go, or nothing changes.
func (s *Service) DeleteRows(sessionID string, rows []int) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	if err := sess.Table.DeleteRows(rows); err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// ResetEdits discards all edits, re-parsing the session's original text.
func (s *Service) ResetEdits(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	table, err := registry.Parse(sess.Original)
	if err != nil {
		return nil, err
	}
	sess.Table = table
	return viewOf(sess), nil
}
