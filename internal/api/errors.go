package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/project"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeTooLarge       = "request_too_large"
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
		Status:  status,
		Code:    code,
		Message: message,
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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pinforge"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps project and catalog errors to responses.
// Validation is checked first because the planner wraps catalog
// not-found errors in ErrInvalidProject.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, project.ErrInvalidProject), errors.Is(err, project.ErrInvalidName):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, project.ErrProjectNotFound):
		writeNotFound(w, "project not found")
	case errors.Is(err, project.ErrRunNotFound):
		writeNotFound(w, "project has no allocation runs")
	case errors.Is(err, project.ErrRunStale):
		writeError(w, http.StatusConflict, ErrCodeConflict, "project changed since its latest run; allocate again")
	case errors.Is(err, catalog.ErrMCUNotFound):
		writeNotFound(w, "mcu not found")
	case errors.Is(err, catalog.ErrSensorNotFound):
		writeNotFound(w, "sensor not found")
	case errors.Is(err, project.ErrProjectExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "project already exists")
	default:
		s.logger.Error("request failed", "action", action, "error", err)
		writeInternalError(w, "failed to "+action)
	}
}

// decodeJSON decodes the request body into v, writing a 400 or 413 on
// failure. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return false
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
