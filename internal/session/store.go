// Package session keeps per-editor working state between HTTP requests.
//
// A session owns one decoded registry file: the parsed table, the exact
// original text it came from, and where it should be written back. Sessions
// live in an expiring in-memory cache; every access pushes the expiry out,
// so only abandoned editors are evicted.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/mkitahara/idreg/internal/registry"
)

const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Session is the unit of editing state. Handlers must hold the session
// lock while reading or mutating Table, Original, or RemotePath.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu sync.Mutex

	// Name is the source file's base name, used for export downloads.
	Name string
	// RemotePath is the storage path the file was loaded from, empty for
	// browser uploads.
	RemotePath string
	// Encoding and Lossy describe how the original bytes were decoded.
	Encoding string
	Lossy    bool

	// Original is the decoded text exactly as loaded; the patch engine
	// uses it to rewrite only what changed.
	Original string
	Table    *registry.Table
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Store is an expiring registry of live sessions.
type Store struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewStore(ttl, cleanupInterval time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Store{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// Create registers a fresh session. The caller fills in the editing state
// before handing the ID to a client.
func (st *Store) Create() *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	st.cache.Set(s.ID, s, st.ttl)
	return s
}

// Get looks up a live session and extends its expiry.
func (st *Store) Get(id string) (*Session, bool) {
	value, found := st.cache.Get(id)
	if !found {
		return nil, false
	}
	s, ok := value.(*Session)
	if !ok {
		return nil, false
	}
	st.cache.Set(id, s, st.ttl)
	return s, true
}

// Delete drops a session immediately. Deleting an unknown ID is a no-op.
func (st *Store) Delete(id string) {
	st.cache.Delete(id)
}

// Count reports how many sessions are currently live, expired ones included
// until the next cleanup sweep.
func (st *Store) Count() int {
	return st.cache.ItemCount()
}
