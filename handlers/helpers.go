package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"permitkeeper/models"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeEngineError maps the engine's failure taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *models.NotFoundError
	var transientErr *models.TransientIOError
	var decodeErr *models.DecodeError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		writeError(w, notFoundErr.Error(), http.StatusNotFound)
	case errors.As(err, &transientErr):
		writeError(w, "Upstream store unavailable, try again", http.StatusBadGateway)
	case errors.As(err, &decodeErr):
		writeError(w, "Stored record is malformed", http.StatusInternalServerError)
	default:
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}
