package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mkitahara/idreg/internal/logging"
	"github.com/mkitahara/idreg/internal/storage"
)

// LoadUpload opens an editing session from an uploaded file.
func (s *Service) LoadUpload(ctx context.Context, fileName string, data []byte) (*SessionView, error) {
	if !strings.EqualFold(path.Ext(fileName), ".csv") {
		return nil, fmt.Errorf("%w: %q", ErrNotCSV, fileName)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	view, err := s.openSession(ctx, fileName, "", data)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("session opened from upload",
		"session_id", view.ID,
		"file", fileName,
		"encoding", view.Encoding,
		"rows", view.RowCount,
	)
	return view, nil
}

// LoadRemote opens an editing session from a file in remote storage.
//
// When the file does not exist, LoadRemote returns a listing of its parent
// folder instead of an error so the client can let the user pick the right
// file. Any other failure is returned as an error.
func (s *Service) LoadRemote(ctx context.Context, filePath string) (*SessionView, *Listing, error) {
	if s.remote == nil {
		return nil, nil, ErrRemoteUnconfigured
	}
	if filePath == "" || !storage.ValidPath(filePath) || strings.HasSuffix(filePath, "/") {
		return nil, nil, fmt.Errorf("%w: %q", storage.ErrInvalidPath, filePath)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	defer s.limiter.Release()

	fetchCtx, cancel := context.WithTimeout(ctx, StorageTimeout)
	defer cancel()

	raw, err := s.remote.Fetch(fetchCtx, filePath)
	if errors.Is(err, storage.ErrNotFound) {
		listing, lerr := s.listDir(ctx, storage.Parent(filePath))
		if lerr != nil {
			// The fallback listing failed too; report the original miss.
			return nil, nil, err
		}
		logging.FromContext(ctx).Info("remote file missing, offering parent listing",
			"path", filePath,
			"entries", len(listing.Entries),
		)
		return nil, listing, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	view, err := s.openSession(ctx, path.Base(filePath), filePath, raw)
	if err != nil {
		return nil, nil, err
	}

	logging.FromContext(ctx).Info("session opened from remote",
		"session_id", view.ID,
		"path", filePath,
		"encoding", view.Encoding,
		"rows", view.RowCount,
	)
	return view, nil, nil
}

// Explore lists a remote folder.
func (s *Service) Explore(ctx context.Context, dir string) (*Listing, error) {
	if s.remote == nil {
		return nil, ErrRemoteUnconfigured
	}
	if !storage.ValidPath(dir) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidPath, dir)
	}
	return s.listDir(ctx, dir)
}

func (s *Service) listDir(ctx context.Context, dir string) (*Listing, error) {
	listCtx, cancel := context.WithTimeout(ctx, StorageTimeout)
	defer cancel()

	entries, err := s.remote.List(listCtx, dir)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &Listing{
		Path:    storage.Normalize(dir),
		Parent:  storage.Parent(dir),
		Entries: entries,
	}, nil
}

// openSession decodes and parses raw file bytes and registers a session
// holding the result.
func (s *Service) openSession(ctx context.Context, name, remotePath string, raw []byte) (*SessionView, error) {
	dec, table, err := decodeAndParse(raw)
	if err != nil {
		return nil, err
	}
	if dec.Lossy {
		logging.FromContext(ctx).Warn("file decoded lossily, some bytes were dropped",
			"file", name,
			"attempts", dec.Attempts,
		)
	}

	sess := s.sessions.Create()
	sess.Lock()
	defer sess.Unlock()
	sess.Name = name
	sess.RemotePath = remotePath
	sess.Encoding = dec.Encoding
	sess.Lossy = dec.Lossy
	sess.Original = dec.Text
	sess.Table = table

	return viewOf(sess), nil
}
