package core

import "errors"

// ErrSessionNotFound is returned when an operation names a session ID that
// is not live, either because it expired or never existed.
var ErrSessionNotFound = errors.New("session not found")

// ErrRemoteUnconfigured is returned by remote operations when the server was
// started without storage credentials. Upload-based editing still works.
var ErrRemoteUnconfigured = errors.New("remote storage not configured")

// ErrNotCSV is returned when an uploaded file does not carry a .csv extension.
var ErrNotCSV = errors.New("not a csv file")

// ErrNoSavePath is returned when a save is requested for a session that was
// not loaded from remote storage and no explicit target path was given.
var ErrNoSavePath = errors.New("no save path")

// ErrStorage wraps remote storage failures other than a missing file, so
// callers can distinguish infrastructure trouble from user mistakes.
var ErrStorage = errors.New("storage failure")
