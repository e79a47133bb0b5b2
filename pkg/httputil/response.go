package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Envelope wraps every body as {"status": "ok"|"error", "data"|"error": ...}
type Envelope struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code      string `json:"code"` // e.g. "dependencies_unhealthy"
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

// OK writes data in a success envelope
func OK(w http.ResponseWriter, status int, data any) error {
	return write(w, status, Envelope{Status: "ok", Data: data})
}

// Error writes an error envelope tagged with the chi request id; errors are never cached
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) error {
	w.Header().Set("Cache-Control", "no-store")
	return write(w, status, Envelope{
		Status: "error",
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetReqID(r.Context()),
		},
	})
}

func write(w http.ResponseWriter, status int, env Envelope) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(env)
}
