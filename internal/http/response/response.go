package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Envelope{Success: true, Data: data})
}

// Message writes a successful response carrying only a human-readable note.
func Message(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	write(w, r, status, Envelope{Success: true, Data: data, Message: message})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, r, status, Envelope{
		Success: false,
		Message: message,
		Error:   &ErrorBody{Code: code, Details: details},
	})
}

func write(w http.ResponseWriter, r *http.Request, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "response encode failed", "error", err)
	}
}
