// Package httputil maps domain errors onto HTTP responses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/bazaar-tracker/internal/domain"
)

// StatusFor returns the HTTP status code for err
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInsufficientItems),
		errors.Is(err, domain.ErrInvalidPriceData):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOptimizationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrQuoteUnavailable),
		errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON body of every error response
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes data as a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
