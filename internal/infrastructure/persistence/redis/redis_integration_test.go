//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
)

func setupRedis(t *testing.T) *Cache {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Addr = endpoint
	cache, err := NewCache(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return cache
}

func TestIntegration_RosterCache(t *testing.T) {
	cache := setupRedis(t)
	rc := NewRosterCache(cache)
	ctx := context.Background()

	_, err := rc.Get(ctx, "Aequitas")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	roster := &superlative.Roster{
		Guild:   "Aequitas",
		Prefix:  "Aeq",
		Members: []superlative.RosterEntry{{UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5", Username: "Notch", RankTag: "owner"}},
	}
	require.NoError(t, rc.Set(ctx, roster, time.Minute))

	got, err := rc.Get(ctx, "Aequitas")
	require.NoError(t, err)
	assert.Equal(t, "Notch", got.Members[0].Username)

	ttl, err := cache.TTL(ctx, RosterKey("Aequitas"))
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestIntegration_Locker(t *testing.T) {
	cache := setupRedis(t)
	locker := NewLocker(cache)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "reconcile:Aequitas", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "reconcile:Aequitas", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	unlock()

	unlock2, ok, err := locker.TryLock(ctx, "reconcile:Aequitas", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}
