package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedBotStore is a read-through cache in front of a BotStore for
// hashed-token lookups. Only hits are cached, so a freshly added bot is
// visible immediately. DeleteBot purges the cache, making revocation
// immediate within this process; other processes see it after the TTL.
type CachedBotStore struct {
	BotStore
	cache *expirable.LRU[string, BotData]
}

// NewCachedBotStore wraps inner. If size <= 0 the inner store is returned unchanged.
func NewCachedBotStore(inner BotStore, size int, ttl time.Duration) BotStore {
	if size <= 0 {
		return inner
	}
	return &CachedBotStore{
		BotStore: inner,
		cache:    expirable.NewLRU[string, BotData](size, nil, ttl),
	}
}

func (c *CachedBotStore) FindBotByHashedToken(ctx context.Context, hash string) (*BotData, error) {
	if b, ok := c.cache.Get(hash); ok {
		return &b, nil
	}
	b, err := c.BotStore.FindBotByHashedToken(ctx, hash)
	if err != nil {
		return nil, err
	}
	c.cache.Add(hash, *b)
	return b, nil
}

func (c *CachedBotStore) DeleteBot(ctx context.Context, id uuid.UUID) error {
	err := c.BotStore.DeleteBot(ctx, id)
	// Purge even on error: the row may be gone despite a late failure.
	c.cache.Purge()
	return err
}
