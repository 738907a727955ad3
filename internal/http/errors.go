package http

import (
	"encoding/json"
	"net/http"
)

const (
	msgMissingAuth    = "Missing authorization"
	msgInvalidToken   = "Invalid bot token"
	msgUnknownVendor  = "Unknown vendor: "
	msgNoKeys         = "No API keys available for vendor: "
	msgKeyIntegrity   = "Key integrity error for vendor: "
	msgInternal       = "Internal error"
	msgUpstreamFailed = "Upstream request failed"
	msgBodyTooLarge   = "Request body too large"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the gateway's error envelope: {"error": "<message>"}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
