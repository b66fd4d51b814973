// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
)

// Status mirrors the envelope the trigger callers expect.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AnalyzeResponse is the body of every /video/analyze response.
type AnalyzeResponse struct {
	StatusCode Status `json:"statusCode"`
	RunID      string `json:"runId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, AnalyzeResponse{StatusCode: Status{Code: code, Message: message}})
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// writeServiceUnavailable writes a 503 Service Unavailable response
func writeServiceUnavailable(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
}
