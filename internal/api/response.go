// Helper functions for sending standardized JSON responses.

package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/vrsandeep/sd-gallery/internal/library"
)

// RespondWithJSON writes a JSON response with the given status code and payload.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		// If marshaling fails, return an error response
		RespondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError writes a standardized JSON error response.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// statusForError maps library errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, library.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, library.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
