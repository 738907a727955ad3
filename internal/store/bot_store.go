package store

import (
	"context"

	"github.com/google/uuid"
)

// BotData is a gateway tenant. Only the hash of its bearer token is stored.
type BotData struct {
	BaseModel
	Name        string `json:"name" db:"name"`
	HashedToken string `json:"-" db:"hashed_token"`
}

// BotStore persists bots. Lookups by hashed token are on the request hot path
// and must be served by an index.
type BotStore interface {
	AddBot(ctx context.Context, b *BotData) error
	// FindBotByHashedToken returns ErrNotFound when no bot carries the hash.
	FindBotByHashedToken(ctx context.Context, hash string) (*BotData, error)
	GetBot(ctx context.Context, id uuid.UUID) (*BotData, error)
	ListBots(ctx context.Context) ([]BotData, error)
	DeleteBot(ctx context.Context, id uuid.UUID) error
}
