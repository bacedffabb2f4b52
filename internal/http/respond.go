// Package httpapi is the thin transport layer. Handlers decode, delegate to
// domain services, and encode; business rules stay out of this package.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "roadbook/pkg/domain-errors"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// paginated is the envelope for page-based list endpoints.
type paginated[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto its HTTP status and a stable JSON
// envelope. Non-domain errors become an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   string(dErrors.CodeInternal),
			Message: "internal error",
		})
		return
	}
	status := dErrors.ToHTTPStatus(de.Code)
	msg := de.Message
	if de.Code == dErrors.CodeInternal {
		// Never leak wrapped causes to clients.
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{
		Error:   string(de.Code),
		Message: msg,
		Details: de.Details,
	})
}
