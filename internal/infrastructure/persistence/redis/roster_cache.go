package redis

import (
	"context"
	"time"

	"github.com/guildhub/superlatives/internal/domain/superlative"
)

// RosterCache implements superlative.RosterCache on the generic Cache.
type RosterCache struct {
	cache *Cache
}

// NewRosterCache creates a new RosterCache.
func NewRosterCache(cache *Cache) *RosterCache {
	return &RosterCache{cache: cache}
}

var _ superlative.RosterCache = (*RosterCache)(nil)

// Get returns a cached roster or ErrCacheMiss.
func (c *RosterCache) Get(ctx context.Context, guild string) (*superlative.Roster, error) {
	var roster superlative.Roster
	if err := c.cache.Get(ctx, RosterKey(guild), &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}

// Set stores a roster under its guild name.
func (c *RosterCache) Set(ctx context.Context, roster *superlative.Roster, ttl time.Duration) error {
	if roster == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLRoster
	}
	return c.cache.Set(ctx, RosterKey(roster.Guild), roster, ttl)
}
