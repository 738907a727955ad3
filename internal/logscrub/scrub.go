// Package logscrub redacts credentials from log output.
package logscrub

import (
	"context"
	"log/slog"
	"regexp"
)

// Credential patterns redacted from log messages and string attributes.
var credentialPatterns = []*regexp.Regexp{
	// Bot tokens issued by this gateway
	regexp.MustCompile(`kpb_[0-9a-fA-F]{16,}`),
	// Anthropic (before the generic sk- rule)
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	// OpenAI, DeepSeek, OpenRouter style
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// Groq, xAI
	regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`xai-[a-zA-Z0-9]{20,}`),
	// Slack
	regexp.MustCompile(`xox[abprs]-[a-zA-Z0-9-]{10,}`),
	// Telegram bot tokens
	regexp.MustCompile(`\b[0-9]{8,10}:[a-zA-Z0-9_-]{35}\b`),
	// Generic key=value patterns (case-insensitive)
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?\S{8,}["']?`),
}

// Redacted replaces every match.
const Redacted = "[REDACTED]"

// Scrub replaces known credential patterns in text with [REDACTED].
func Scrub(text string) string {
	for _, pat := range credentialPatterns {
		text = pat.ReplaceAllString(text, Redacted)
	}
	return text
}

// Handler wraps a slog.Handler and scrubs the message and string attrs of
// every record before passing it on.
type Handler struct {
	next slog.Handler
}

// NewHandler returns a scrubbing wrapper around next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(scrubAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = scrubAttr(a)
	}
	return &Handler{next: h.next.WithAttrs(scrubbed)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

func scrubAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Scrub(v.String()))
	case slog.KindGroup:
		group := v.Group()
		scrubbed := make([]slog.Attr, len(group))
		for i, ga := range group {
			scrubbed[i] = scrubAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, Scrub(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
