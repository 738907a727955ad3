package store

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// BotIDKey is the context key for the authenticated bot's UUID.
const BotIDKey contextKey = "keyproxy_bot_id"

// WithBotID returns a new context with the given bot UUID.
func WithBotID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, BotIDKey, id)
}

// BotIDFromContext extracts the bot UUID from context. Returns uuid.Nil if not set.
func BotIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(BotIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
