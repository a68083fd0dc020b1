// Package httputil provides the JSON response envelope shared by all handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope with an ISO-8601 timestamp.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteError writes an error envelope with the status mapped from the error
// taxonomy.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, svcerrors.StatusFor(err), err.Error())
}

// WriteErrorStatus writes an error envelope with an explicit status.
func WriteErrorStatus(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, APIResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadJSON decodes a JSON request body into v.
func ReadJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
