package http

import (
	"net/http"
	"strings"
)

// botTokenHeaders are checked after Authorization, in order. Vendor SDKs put
// the API key in one of these, so bots can point an unmodified SDK at the gateway.
var botTokenHeaders = []string{"x-api-key", "x-goog-api-key"}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// extractBotToken returns the first non-empty bot token from the
// Authorization bearer, x-api-key or x-goog-api-key headers.
func extractBotToken(r *http.Request) string {
	if tok := extractBearerToken(r); tok != "" {
		return tok
	}
	for _, h := range botTokenHeaders {
		if tok := strings.TrimSpace(r.Header.Get(h)); tok != "" {
			return tok
		}
	}
	return ""
}
