package core

import (
	"time"

	"github.com/mkitahara/idreg/internal/storage"
)

// SessionView is the JSON shape of an editing session sent to the browser.
// For a normal table, Rows carries the managed columns. For a degraded table
// (fewer than four header columns) Rows is empty and Grid carries the raw
// records read-only.
type SessionView struct {
	ID         string    `json:"sessionId"`
	FileName   string    `json:"fileName"`
	RemotePath string    `json:"remotePath,omitempty"`
	Encoding   string    `json:"encoding"`
	Lossy      bool      `json:"lossyDecode,omitempty"`
	Degraded   bool      `json:"degraded,omitempty"`
	Modified   bool      `json:"modified"`
	// PlainSave is set when row-to-line mapping was lost at parse time and a
	// save will rewrite the whole file in canonical form instead of patching.
	PlainSave bool      `json:"plainSave,omitempty"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`

	Columns []ColumnView `json:"columns"`
	Rows    []RowView    `json:"rows,omitempty"`
	Grid    [][]string   `json:"grid,omitempty"`
}

// ColumnView describes one header column. Managed columns carry a stable
// field ID the client uses when editing; passthrough columns have none.
type ColumnView struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Editable bool   `json:"editable"`
}

// RowView is one table row with its managed columns.
type RowView struct {
	Index               int    `json:"index"`
	Year                string `json:"year"`
	DistributedPid      string `json:"distributedPid"`
	DistributedID       string `json:"distributedId"`
	MaintenanceResultID string `json:"maintenanceResultId"`
}

// Listing is a remote directory listing, returned by Explore and offered as
// a fallback when a requested file does not exist.
type Listing struct {
	Path    string          `json:"path"`
	Parent  string          `json:"parent"`
	Entries []storage.Entry `json:"entries"`
}

// SaveResult reports a completed remote save.
type SaveResult struct {
	Path         string    `json:"path"`
	BytesWritten int       `json:"bytesWritten"`
	Encoding     string    `json:"encoding"`
	Fallback     bool      `json:"encodingFallback,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
}

// ExportResult carries a serialized file for download. The handler turns it
// into Content-Disposition and Content-Type headers.
type ExportResult struct {
	FileName string
	Data     []byte
	Encoding string
	Fallback bool
}

// DiffSpan is one run of text in a save preview. Op is "equal", "insert",
// or "delete".
type DiffSpan struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// DiffView previews what a save would change, as a sequence of text spans
// from the original file to the patched one.
type DiffView struct {
	Changed    bool       `json:"changed"`
	Insertions int        `json:"insertions"`
	Deletions  int        `json:"deletions"`
	Spans      []DiffSpan `json:"spans"`
}

// ServiceStatus is a snapshot of service health for monitoring.
type ServiceStatus struct {
	Sessions          int               `json:"sessions"`
	Loads             LoadLimiterStatus `json:"loads"`
	RemoteConfigured  bool              `json:"remoteConfigured"`
	DefaultRemotePath string            `json:"defaultRemotePath,omitempty"`
}
