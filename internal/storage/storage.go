// Package storage defines the remote object store the registry file
// lives in. Calls are blocking and single-attempt with overwrite
// semantics; there is no versioning and no optimistic concurrency.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound reports a missing remote path. Loaders turn it into the
// directory-exploration fallback instead of a hard failure.
var ErrNotFound = errors.New("path not found")

// ErrInvalidPath rejects paths that do not address the store: anything
// that is neither the root "" nor slash-prefixed.
var ErrInvalidPath = errors.New("path must be empty or start with /")

// Entry is one item of a directory listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDirectory"`
	Size  int64  `json:"sizeBytes"`
}

// Client is the storage collaborator.
type Client interface {
	// Fetch downloads the file at path. Missing paths report ErrNotFound.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Store uploads data to path, overwriting existing content.
	Store(ctx context.Context, path string, data []byte) error

	// List enumerates the directory at path, folders before files.
	// Missing directories report ErrNotFound.
	List(ctx context.Context, path string) ([]Entry, error)
}

// ValidPath reports whether p addresses the store.
func ValidPath(p string) bool {
	return p == "" || strings.HasPrefix(p, "/")
}

// Normalize trims trailing slashes; the root collapses to "".
func Normalize(p string) string {
	return strings.TrimRight(p, "/")
}

// Parent returns the directory containing p: Parent("/a/b.csv") is "/a",
// Parent("/a") is the root "".
func Parent(p string) string {
	p = Normalize(p)
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return ""
	}
	return p[:i]
}
