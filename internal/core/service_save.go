package core

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mkitahara/idreg/internal/charset"
	"github.com/mkitahara/idreg/internal/logging"
	"github.com/mkitahara/idreg/internal/registry"
	"github.com/mkitahara/idreg/internal/storage"
)

// SaveRemote writes the session's current table back to remote storage.
// With an empty path, the file is written back where it was loaded from.
//
// On success the session is re-baselined: the saved text becomes the new
// original, so the next round of edits diffs against what is actually
// stored. On failure the session is left untouched.
func (s *Service) SaveRemote(ctx context.Context, sessionID, savePath string) (*SaveResult, error) {
	if s.remote == nil {
		return nil, ErrRemoteUnconfigured
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	if savePath == "" {
		savePath = sess.RemotePath
	}
	if savePath == "" {
		return nil, ErrNoSavePath
	}
	if !storage.ValidPath(savePath) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidPath, savePath)
	}

	text := registry.ApplyEdits(sess.Original, sess.Table)
	enc := charset.Encode(text)

	storeCtx, cancel := context.WithTimeout(ctx, StorageTimeout)
	defer cancel()
	if err := s.remote.Store(storeCtx, savePath, enc.Data); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Re-baseline. The parse cannot fail on the patch engine's own output,
	// but if it somehow does, the stale baseline is still consistent.
	if table, perr := registry.Parse(text); perr == nil {
		sess.Table = table
		sess.Original = text
		sess.RemotePath = savePath
		sess.Encoding = enc.Encoding
		sess.Lossy = false
	}

	logging.FromContext(ctx).Info("session saved to remote",
		"session_id", sessionID,
		"path", savePath,
		"bytes", len(enc.Data),
		"encoding", enc.Encoding,
		"fallback", enc.Fallback,
	)

	return &SaveResult{
		Path:         savePath,
		BytesWritten: len(enc.Data),
		Encoding:     enc.Encoding,
		Fallback:     enc.Fallback,
		SavedAt:      time.Now(),
	}, nil
}

// Export serializes the session's current table for download, encoded the
// same way a remote save would be.
func (s *Service) Export(sessionID string) (*ExportResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	text := registry.ApplyEdits(sess.Original, sess.Table)
	enc := charset.Encode(text)

	name := sess.Name
	if name == "" {
		name = defaultExportName
	}
	return &ExportResult{
		FileName: name,
		Data:     enc.Data,
		Encoding: enc.Encoding,
		Fallback: enc.Fallback,
	}, nil
}

// PreviewDiff shows what a save would change, as text spans from the
// original file to the patched serialization.
func (s *Service) PreviewDiff(sessionID string) (*DiffView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	text := registry.ApplyEdits(sess.Original, sess.Table)

	view := &DiffView{Changed: text != sess.Original}
	if !view.Changed {
		view.Spans = []DiffSpan{{Op: "equal", Text: sess.Original}}
		return view, nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(sess.Original, text, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	view.Spans = make([]DiffSpan, 0, len(diffs))
	for _, d := range diffs {
		span := DiffSpan{Text: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			span.Op = "insert"
			view.Insertions += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			span.Op = "delete"
			view.Deletions += utf8.RuneCountInString(d.Text)
		default:
			span.Op = "equal"
		}
		view.Spans = append(view.Spans, span)
	}
	return view, nil
}
