package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/keyproxy/internal/secret"
)

// ErrUpstream is returned when the upstream call fails before any response
// has been written to the client.
var ErrUpstream = errors.New("upstream: request failed")

// ForwardRequest is one bot request, already authenticated and bound to a key.
type ForwardRequest struct {
	Vendor Vendor
	// Key is owned by the caller and valid until Forward returns.
	Key *secret.Buffer
	// Path is the vendor-relative path including "?" and the raw query, if any.
	Path          string
	Method        string
	Header        http.Header
	Body          io.Reader
	ContentLength int64
}

// Forwarder relays a request upstream and writes the vendor's response to w.
// It returns the status relayed to the client. A non-nil error means nothing
// was written and the caller owns the response.
type Forwarder interface {
	Forward(ctx context.Context, w http.ResponseWriter, req *ForwardRequest) (int, error)
}

// credentialHeaders are client-supplied auth headers. They carry the bot
// token and must never reach a vendor.
var credentialHeaders = map[string]bool{
	"authorization":  true,
	"x-api-key":      true,
	"x-goog-api-key": true,
	"cookie":         true,
}

var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHopHeader(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

// HTTPForwarder forwards over HTTP with the vendor key injected.
type HTTPForwarder struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPForwarder creates a forwarder. A nil client gets a transport tuned
// for long-lived streaming responses.
func NewHTTPForwarder(client *http.Client, logger *slog.Logger) *HTTPForwarder {
	if client == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
		client = &http.Client{
			// No overall timeout: SSE streams are long-lived.
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPForwarder{client: client, logger: logger}
}

// Forward implements Forwarder. The request context bounds the upstream call,
// so a client disconnect aborts it.
func (f *HTTPForwarder) Forward(ctx context.Context, w http.ResponseWriter, req *ForwardRequest) (int, error) {
	start := time.Now()
	target := strings.TrimSuffix(req.Vendor.BaseURL, "/") + req.Path

	upReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	upReq.ContentLength = req.ContentLength

	for key, values := range req.Header {
		if isHopByHopHeader(key) || credentialHeaders[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			upReq.Header.Add(key, value)
		}
	}
	for key, value := range req.Vendor.ExtraHeaders {
		if upReq.Header.Get(key) == "" {
			upReq.Header.Set(key, value)
		}
	}
	upReq.Header.Set(req.Vendor.AuthHeader, req.Vendor.AuthValue(req.Key.String()))

	resp, err := f.client.Do(upReq)
	if err != nil {
		f.logger.Warn("proxy.upstream_failed",
			"vendor", req.Vendor.Name,
			"method", req.Method,
			"error", err,
			"duration", time.Since(start),
		)
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if isHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		if flusher, ok := w.(http.Flusher); ok {
			f.streamSSE(w, flusher, resp, req.Vendor.Name, start)
			return resp.StatusCode, nil
		}
	}

	w.WriteHeader(resp.StatusCode)
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		f.logger.Warn("proxy.copy_interrupted", "vendor", req.Vendor.Name, "bytes", n, "error", err)
	}
	f.logger.Debug("proxy.forward",
		"vendor", req.Vendor.Name,
		"method", req.Method,
		"status", resp.StatusCode,
		"bytes", n,
		"duration", time.Since(start),
	)
	return resp.StatusCode, nil
}

// streamSSE relays an event stream, flushing after every chunk.
func (f *HTTPForwarder) streamSSE(w http.ResponseWriter, flusher http.Flusher, resp *http.Response, vendor string, start time.Time) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(resp.StatusCode)
	flusher.Flush()

	buf := make([]byte, 4096)
	var total int64
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			if writeErr != nil {
				f.logger.Info("proxy.client_disconnected", "vendor", vendor, "bytes", total, "duration", time.Since(start))
				return
			}
			total += int64(written)
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				f.logger.Warn("proxy.stream_error", "vendor", vendor, "error", err, "bytes", total)
			}
			break
		}
	}

	f.logger.Debug("proxy.stream_complete",
		"vendor", vendor,
		"status", resp.StatusCode,
		"bytes", total,
		"duration", time.Since(start),
	)
}
