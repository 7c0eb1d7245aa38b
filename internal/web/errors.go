package web

// errors.go turns service errors into HTTP responses.
//
// Handlers pass every error to respondError, which:
//  1. Picks the HTTP status for the error's sentinel (statusFor).
//  2. Maps the error to a user-facing message via core.MapError.
//  3. Logs the technical error with the request ID for correlation.
//  4. Writes an ErrorResponse JSON body.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mkitahara/idreg/internal/core"
	"github.com/mkitahara/idreg/internal/logging"
	"github.com/mkitahara/idreg/internal/registry"
	"github.com/mkitahara/idreg/internal/storage"
)

// ErrorResponse is the JSON structure for API error responses. Listing is
// set only on the missing-remote-file response, where it carries the parent
// directory so the client can offer a file picker.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Action  string        `json:"action,omitempty"`
	Code    string        `json:"code"`
	Listing *core.Listing `json:"listing,omitempty"`
}

// respondError writes err as a JSON error response with the appropriate
// HTTP status, logging the technical details server-side.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	respondErrorJSON(w, userMsg, status, nil)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int, listing *core.Listing) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Listing: listing,
	})
}

// statusFor picks the HTTP status code for a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, registry.ErrDuplicateYear):
		return http.StatusConflict

	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusTooManyRequests

	case errors.Is(err, core.ErrRemoteUnconfigured):
		return http.StatusServiceUnavailable

	case errors.Is(err, core.ErrStorage):
		return http.StatusBadGateway

	case errors.Is(err, core.ErrNotCSV),
		errors.Is(err, core.ErrNoSavePath),
		errors.Is(err, registry.ErrEmptyInput),
		errors.Is(err, registry.ErrMalformedInput),
		errors.Is(err, registry.ErrDegradedTable),
		errors.Is(err, registry.ErrYearImmutable),
		errors.Is(err, registry.ErrUnknownColumn),
		errors.Is(err, registry.ErrRowRange),
		errors.Is(err, registry.ErrEmptyYear),
		errors.Is(err, storage.ErrInvalidPath):
		return http.StatusUnprocessableEntity

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}
