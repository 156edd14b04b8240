// Package api provides the REST API and WebSocket server for conductor.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	cerrors "github.com/randalmurphal/conductor/internal/errors"
)

// APIError is the standard error response format.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Fix   string `json:"fix,omitempty"`
}

// JSONResponse writes a successful JSON response.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// JSONResponseStatus writes a JSON response with a specific status code.
func JSONResponseStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes a simple error response.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{Error: message})
}

// HandleError inspects the error type and writes the matching response.
func HandleError(w http.ResponseWriter, err error) {
	var cErr *cerrors.Error
	if errors.As(err, &cErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(cErr.HTTPStatus())
		_ = json.NewEncoder(w).Encode(APIError{
			Error: cErr.What,
			Code:  string(cErr.Code),
			Fix:   cErr.Fix,
		})
		return
	}
	JSONError(w, err.Error(), http.StatusInternalServerError)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads the request body into v with a strict decoder.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
