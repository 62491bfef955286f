// Package httpjson holds the shared JSON response envelope used by every
// handler: successes carry {"success":true, ...}, failures carry
// {"success":false, "error": "..."}.
package httpjson

import (
	"encoding/json"
	"net/http"

	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
)

// Write serializes v with the given status code.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode json response", "error", err)
	}
}

// OK writes a success envelope, merging extra fields into the body.
func OK(w http.ResponseWriter, status int, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	Write(w, status, body)
}

// Error writes a failure envelope with the given message.
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
