package keyring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

const (
	redisCursorPrefix = "keyproxy:cursor:"

	defaultCursorTimeout  = 200 * time.Millisecond
	defaultCursorCooldown = 5 * time.Second
)

// RedisCursor shares the rotation position across gateway replicas with
// INCR. When Redis is unreachable it degrades to a process-local cursor
// and stops calling Redis until the cooldown has passed.
type RedisCursor struct {
	client   redis.Cmdable
	fallback *MemoryCursor

	timeout  time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu        sync.Mutex
	openUntil time.Time
}

func NewRedisCursor(client redis.Cmdable) *RedisCursor {
	return &RedisCursor{
		client:   client,
		fallback: NewMemoryCursor(),
		timeout:  defaultCursorTimeout,
		cooldown: defaultCursorCooldown,
		now:      time.Now,
	}
}

func (c *RedisCursor) Next(ctx context.Context, vendor string) uint64 {
	if c.isOpen() {
		return c.fallback.Next(ctx, vendor)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	n, err := c.client.Incr(callCtx, redisCursorPrefix+vendor).Result()
	if err != nil {
		c.trip()
		slog.Warn("keyring.cursor_fallback", "vendor", vendor, "bot", store.BotIDFromContext(ctx),
			"retry_in", c.cooldown, "error", err)
		return c.fallback.Next(ctx, vendor)
	}
	// INCR starts at 1.
	return uint64(n - 1)
}

func (c *RedisCursor) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.openUntil)
}

func (c *RedisCursor) trip() {
	c.mu.Lock()
	c.openUntil = c.now().Add(c.cooldown)
	c.mu.Unlock()
}
