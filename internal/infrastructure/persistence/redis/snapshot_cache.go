package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
)

// SnapshotCache is a read-through cache in front of a durable snapshot store.
// Cache failures degrade to the store and are only logged.
type SnapshotCache struct {
	cache  *Cache
	store  superlative.SnapshotStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewSnapshotCache wraps store.
func NewSnapshotCache(cache *Cache, store superlative.SnapshotStore, ttl time.Duration, log *slog.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = TTLSnapshot
	}
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotCache{cache: cache, store: store, ttl: ttl, logger: log.With(logger.Component("snapshot_cache"))}
}

var _ superlative.SnapshotStore = (*SnapshotCache)(nil)

// Save writes through to the store and refreshes the cached copy, dropping it
// when the refresh fails.
func (c *SnapshotCache) Save(ctx context.Context, s *superlative.Snapshot) error {
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}
	key := SnapshotKey(s.PeriodID, string(s.Track))
	if err := c.cache.Set(ctx, key, s, c.ttl); err != nil {
		c.logger.Warn("snapshot cache refresh failed", logger.Period(s.PeriodID), logger.Err(err))
		// A stale copy would outlive the new capture.
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("snapshot cache invalidation failed", logger.Period(s.PeriodID), logger.Err(err))
		}
	}
	return nil
}

// Get serves from cache and falls back to the store on miss.
func (c *SnapshotCache) Get(ctx context.Context, periodID string, track superlative.Track) (*superlative.Snapshot, error) {
	key := SnapshotKey(periodID, string(track))

	var cached superlative.Snapshot
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("snapshot cache read failed", logger.Period(periodID), logger.Err(err))
	}

	snap, err := c.store.Get(ctx, periodID, track)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, snap, c.ttl); err != nil {
		c.logger.Warn("snapshot cache fill failed", logger.Period(periodID), logger.Err(err))
	}
	return snap, nil
}
