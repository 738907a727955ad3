package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/keyproxy/internal/crypto"
	"github.com/nextlevelbuilder/keyproxy/internal/keyring"
	"github.com/nextlevelbuilder/keyproxy/internal/store"
	"github.com/nextlevelbuilder/keyproxy/internal/upstream"
)

const proxyPrefix = "/v1/"

// DefaultMaxBodyBytes caps request bodies forwarded upstream.
const DefaultMaxBodyBytes int64 = 32 << 20

// ProxyHandler handles /v1/{vendor}/{rest...}: authenticates the bot, resolves
// the vendor, leases a pooled key and hands the request to the forwarder.
type ProxyHandler struct {
	bots      store.BotStore
	keys      *keyring.Keyring
	vendors   *upstream.Registry
	forwarder upstream.Forwarder
	maxBody   int64
	tracer    trace.Tracer
}

// NewProxyHandler creates the gateway proxy handler.
func NewProxyHandler(bots store.BotStore, keys *keyring.Keyring, vendors *upstream.Registry, fwd upstream.Forwarder) *ProxyHandler {
	return &ProxyHandler{
		bots:      bots,
		keys:      keys,
		vendors:   vendors,
		forwarder: fwd,
		maxBody:   DefaultMaxBodyBytes,
		tracer:    otel.Tracer("github.com/nextlevelbuilder/keyproxy/internal/http"),
	}
}

// SetMaxBodyBytes sets the request body cap. Zero or negative disables it.
func (h *ProxyHandler) SetMaxBodyBytes(n int64) {
	h.maxBody = n
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "keyproxy.proxy",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.method", r.Method)),
	)
	defer span.End()

	fail := func(status int, outcome, message string) {
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("keyproxy.outcome", outcome),
		)
		span.SetStatus(codes.Error, outcome)
		writeError(w, status, message)
	}

	token := extractBotToken(r)
	if token == "" {
		fail(http.StatusUnauthorized, "missing_authorization", msgMissingAuth)
		return
	}

	bot, err := h.bots.FindBotByHashedToken(ctx, crypto.HashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("security.invalid_bot_token", "remote", r.RemoteAddr)
		fail(http.StatusForbidden, "invalid_bot_token", msgInvalidToken)
		return
	}
	if err != nil {
		slog.Error("proxy.bot_lookup_failed", "error", err)
		fail(http.StatusInternalServerError, "store_error", msgInternal)
		return
	}
	ctx = store.WithBotID(ctx, bot.ID)
	span.SetAttributes(attribute.String("keyproxy.bot_id", bot.ID.String()))

	vendorName, path := splitProxyTarget(requestTarget(r))
	vendor, ok := h.lookupVendor(vendorName)
	if !ok {
		fail(http.StatusBadRequest, "unknown_vendor", msgUnknownVendor+vendorName)
		return
	}
	span.SetAttributes(attribute.String("keyproxy.vendor", vendor.Name))

	body := r.Body
	if h.maxBody > 0 && body != nil {
		body = http.MaxBytesReader(w, body, h.maxBody)
	}

	var status int
	err = h.keys.Do(ctx, vendor.Name, func(lease *keyring.Lease) error {
		span.SetAttributes(attribute.String("keyproxy.key_id", lease.KeyID.String()))
		var ferr error
		status, ferr = h.forwarder.Forward(ctx, w, &upstream.ForwardRequest{
			Vendor:        vendor,
			Key:           lease.Secret(),
			Path:          path,
			Method:        r.Method,
			Header:        r.Header,
			Body:          body,
			ContentLength: r.ContentLength,
		})
		return ferr
	})

	var integrity *keyring.IntegrityError
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("keyproxy.outcome", "forwarded"),
		)
		slog.Info("proxy.forward",
			"vendor", vendor.Name,
			"bot", bot.ID,
			"method", r.Method,
			"status", status,
			"duration", time.Since(start),
		)
	case errors.Is(err, keyring.ErrNoKeys):
		slog.Warn("proxy.no_keys", "vendor", vendor.Name, "bot", bot.ID)
		fail(http.StatusServiceUnavailable, "no_keys", msgNoKeys+vendor.Name)
	case errors.As(err, &integrity):
		slog.Error("security.key_integrity",
			"vendor", vendor.Name,
			"key_id", integrity.KeyID,
			"error", integrity.Err,
		)
		fail(http.StatusInternalServerError, "key_integrity", msgKeyIntegrity+vendor.Name)
	case errors.As(err, &tooLarge):
		fail(http.StatusRequestEntityTooLarge, "body_too_large", msgBodyTooLarge)
	case errors.Is(err, upstream.ErrUpstream):
		span.RecordError(err)
		fail(http.StatusBadGateway, "upstream_failed", msgUpstreamFailed)
	default:
		slog.Error("proxy.key_select_failed", "vendor", vendor.Name, "error", err)
		fail(http.StatusInternalServerError, "store_error", msgInternal)
	}
}

func (h *ProxyHandler) lookupVendor(name string) (upstream.Vendor, bool) {
	if !upstream.ValidName(name) {
		return upstream.Vendor{}, false
	}
	return h.vendors.Lookup(name)
}

// requestTarget returns the raw request-target as received, so percent
// encoding and query byte order survive untouched.
func requestTarget(r *http.Request) string {
	if raw := r.RequestURI; strings.HasPrefix(raw, "/") {
		return raw
	}
	return r.URL.RequestURI()
}

// splitProxyTarget splits "/v1/<vendor>/<rest>?<query>" into the vendor name
// and the vendor-relative path. An empty rest becomes "/". The query is
// appended verbatim only when present.
func splitProxyTarget(target string) (vendor, path string) {
	rawPath, rawQuery, _ := strings.Cut(target, "?")
	rest := strings.TrimPrefix(rawPath, proxyPrefix)

	vendor, remainder, found := strings.Cut(rest, "/")
	path = "/"
	if found {
		path += remainder
	}
	if rawQuery != "" {
		path += "?" + rawQuery
	}
	return vendor, path
}
