package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-fleet/internal/device"
	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

// Error represents a structured error response.
type Error struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeDatabase       = "database_error"
	ErrCodeTooLarge       = "request_too_large"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Error: message,
		Code:  code,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps an error from the fleet services to a response.
// Validation problems are the client's; everything else is a store failure.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *fleet.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, validation.Error())
		return
	}

	var storeErr *device.StoreError
	if !errors.As(err, &storeErr) {
		storeErr = &device.StoreError{Op: "request", Err: err}
	}
	s.logger.Error("device store request failed",
		"op", storeErr.Op,
		"serial", storeErr.Serial,
		"error", storeErr.Err,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeError(w, http.StatusInternalServerError, ErrCodeDatabase, "Database error: "+storeErr.Err.Error())
}

// writeDecodeError reports a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
		return
	}
	writeBadRequest(w, "invalid JSON body")
}
