// Package api provides HTTP API handlers for calibration and attribution.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// trimRoute strips the first matching prefix from path and reports whether
// one matched. Prefixes are tried in order.
func trimRoute(path string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return strings.TrimPrefix(path, p), true
		}
	}
	return "", false
}
