// Package chainhead caches the chain head a processor is paced against.
package chainhead

import (
	"context"
	"time"

	"github.com/goran-ethernal/ChainHound/internal/types"
)

// Cache remembers the last fetched head for a bounded time.
// A Cache belongs to one processor and is not safe for concurrent use.
type Cache struct {
	reader   types.HeaderReader
	finality types.BlockFinality
	ttl      time.Duration
	now      func() time.Time

	block     uint64
	fetchedAt time.Time
	valid     bool
}

// New creates a cache querying reader for the head of the given finality.
func New(reader types.HeaderReader, finality types.BlockFinality, ttl time.Duration) *Cache {
	return &Cache{
		reader:   reader,
		finality: finality,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached head while it is younger than the TTL, otherwise queries it once.
// On error the previous snapshot is kept and the next call queries again.
func (c *Cache) Get(ctx context.Context) (uint64, error) {
	now := c.now()
	if c.valid && now.Sub(c.fetchedAt) < c.ttl {
		return c.block, nil
	}

	head, err := c.finality.Head(ctx, c.reader)
	if err != nil {
		return 0, err
	}

	c.block = head
	c.fetchedAt = now
	c.valid = true

	return head, nil
}
