// Package httpapi exposes Badgr over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/sharing"
)

// Problem represents an RFC 7807 "problem details" response.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, detail)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// writeError maps a domain error onto a problem response.
func writeError(w http.ResponseWriter, log badgr.Logger, err error) {
	var validation *badgr.ValidationError
	var unsupported *sharing.UnsupportedProviderError
	switch {
	case errors.As(err, &validation):
		BadRequest(w, validation.Message)
	case errors.Is(err, badgr.ErrNotFound):
		NotFound(w, "Not found.")
	case errors.Is(err, badgr.ErrForbidden):
		WriteProblem(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, badgr.ErrDuplicate):
		WriteProblem(w, http.StatusConflict, "Resource already exists.")
	case errors.As(err, &unsupported):
		WriteProblem(w, http.StatusNotImplemented, "Share provider not implemented: "+unsupported.Code)
	default:
		log.Error("request failed", "error", err)
		InternalServerError(w, "Internal server error")
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}
