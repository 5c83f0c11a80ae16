package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out exclusive, expiring locks keyed by resource name.
type Locker struct {
	client *redis.Client
}

// NewLocker creates a Locker on the cache's client.
func NewLocker(cache *Cache) *Locker {
	return &Locker{client: cache.Client()}
}

// TryLock attempts to take the lock without waiting.
// ok is false when another holder owns it. unlock is safe to call more than once.
func (l *Locker) TryLock(ctx context.Context, resource string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = TTLLock
	}

	key := LockKey(resource)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: lock %s: %v", ErrCacheConnection, resource, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		// the caller's context may already be done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}
