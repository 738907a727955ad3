package keyring

import (
	"context"
	"sync"
	"sync/atomic"
)

// Cursor hands out monotonically increasing rotation positions per vendor.
// Implementations must be safe for concurrent use.
type Cursor interface {
	Next(ctx context.Context, vendor string) uint64
}

// MemoryCursor is a per-process round-robin cursor.
type MemoryCursor struct {
	counters sync.Map // vendor -> *atomic.Uint64
}

func NewMemoryCursor() *MemoryCursor {
	return &MemoryCursor{}
}

// Next returns the current position for vendor and advances it.
func (c *MemoryCursor) Next(_ context.Context, vendor string) uint64 {
	v, ok := c.counters.Load(vendor)
	if !ok {
		v, _ = c.counters.LoadOrStore(vendor, new(atomic.Uint64))
	}
	return v.(*atomic.Uint64).Add(1) - 1
}
