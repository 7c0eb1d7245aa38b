package core

import (
	"fmt"
	"time"

	"github.com/mkitahara/idreg/internal/charset"
	"github.com/mkitahara/idreg/internal/registry"
	"github.com/mkitahara/idreg/internal/session"
	"github.com/mkitahara/idreg/internal/storage"
)

// StorageTimeout is the maximum duration for a single remote storage call.
var StorageTimeout = 60 * time.Second

// defaultExportName is used when a session has no source file name.
const defaultExportName = "id_management_file.csv"

// Service provides the core business logic for registry editing.
type Service struct {
	remote   storage.Client // nil when no credentials were configured
	sessions *session.Store
	limiter  *LoadLimiter

	// defaultRemotePath is offered to clients as the usual registry
	// location; it is advisory only.
	defaultRemotePath string
}

// NewService creates a Service. remote may be nil, which disables the remote
// load, browse, and save operations while keeping upload-based editing alive.
func NewService(remote storage.Client, sessions *session.Store, limiter *LoadLimiter) *Service {
	if limiter == nil {
		limiter = NewLoadLimiter(DefaultMaxConcurrentLoads, DefaultMaxWaitTime)
	}
	return &Service{
		remote:   remote,
		sessions: sessions,
		limiter:  limiter,
	}
}

// SetDefaultRemotePath records the path advertised to clients as the usual
// registry file location.
func (s *Service) SetDefaultRemotePath(path string) {
	s.defaultRemotePath = path
}

// DefaultRemotePath returns the advertised registry file location, or "".
func (s *Service) DefaultRemotePath() string {
	return s.defaultRemotePath
}

// RemoteConfigured reports whether remote storage operations are available.
func (s *Service) RemoteConfigured() bool {
	return s.remote != nil
}

// Limiter exposes the load limiter, used by shutdown to drain active loads.
func (s *Service) Limiter() *LoadLimiter {
	return s.limiter
}

// Status returns a snapshot of service health.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{
		Sessions:          s.sessions.Count(),
		Loads:             s.limiter.Status(),
		RemoteConfigured:  s.remote != nil,
		DefaultRemotePath: s.defaultRemotePath,
	}
}

// View returns the current state of a session.
func (s *Service) View(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()
	return viewOf(sess), nil
}

// CloseSession drops a session immediately instead of waiting for expiry.
func (s *Service) CloseSession(sessionID string) error {
	if _, ok := s.sessions.Get(sessionID); !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions.Delete(sessionID)
	return nil
}

// session looks up a live session by ID.
func (s *Service) session(id string) (*session.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// viewOf snapshots a session into its JSON shape. The caller must hold the
// session lock; the returned view shares no mutable state with the session.
func viewOf(sess *session.Session) *SessionView {
	t := sess.Table
	v := &SessionView{
		ID:         sess.ID,
		FileName:   sess.Name,
		RemotePath: sess.RemotePath,
		Encoding:   sess.Encoding,
		Lossy:      sess.Lossy,
		Degraded:   t.Degraded,
		Modified:   t.Modified(),
		PlainSave:  !t.MappingValid(),
		CreatedAt:  sess.CreatedAt,
	}

	if t.Degraded {
		// Degraded tables never mutate, so sharing the grid is safe.
		v.Columns = columnsFor(t.Header, false)
		v.Grid = t.Grid
		v.RowCount = len(t.Grid)
		return v
	}

	v.Columns = columnsFor(t.Header, true)
	v.Rows = make([]RowView, len(t.Rows))
	for i, r := range t.Rows {
		v.Rows[i] = RowView{
			Index:               i,
			Year:                r.Year,
			DistributedPid:      r.DistributedPid,
			DistributedID:       r.DistributedID,
			MaintenanceResultID: r.MaintenanceResultID,
		}
	}
	v.RowCount = len(t.Rows)
	return v
}

// columnsFor maps header cells to column descriptors. The first four columns
// of a managed table carry field IDs; the year stays read-only and columns
// past the fourth are passthrough.
func columnsFor(header []string, managed bool) []ColumnView {
	fieldIDs := []string{
		registry.FieldYear,
		registry.FieldDistributedPid,
		registry.FieldDistributedID,
		registry.FieldMaintenanceResultID,
	}

	cols := make([]ColumnView, len(header))
	for i, name := range header {
		c := ColumnView{Name: name}
		if managed && i < len(fieldIDs) {
			c.ID = fieldIDs[i]
			c.Editable = i > 0
		}
		cols[i] = c
	}
	return cols
}

// decodeAndParse runs the shared load pipeline: decode raw bytes, parse the
// decoded text.
func decodeAndParse(raw []byte) (charset.DecodeResult, *registry.Table, error) {
	dec := charset.Decode(raw)
	table, err := registry.Parse(dec.Text)
	if err != nil {
		return dec, nil, err
	}
	return dec, table, nil
}
