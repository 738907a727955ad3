package http

import "net/http"

// NewMux mounts the proxy under /v1/ and the health endpoint.
func NewMux(proxy *ProxyHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/v1/", proxy)
	mux.HandleFunc("/health", HealthHandler)
	return mux
}
