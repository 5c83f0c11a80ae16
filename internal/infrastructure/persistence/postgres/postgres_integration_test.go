//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
)

const (
	uuidA = "069a79f4-44e9-4726-a5be-fca90e38aaf5"
	uuidB = "61699b2e-d327-4a01-9f1e-0ea8c3f06bc6"
)

func setupDB(t *testing.T) *Connection {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("superlatives"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := NewConnection(ctx, dsn, DefaultPoolSettings())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	ran, err := NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, len(GetMigrations()), ran)

	return conn
}

// activate makes periodID the active period with no pending wipe.
func activate(t *testing.T, settings *SettingsRepository, periodID string) {
	t.Helper()
	ctx := context.Background()
	_, err := settings.Rollover(ctx, periodID)
	require.NoError(t, err)
	_, err = settings.CompletePendingReset(ctx)
	require.NoError(t, err)
}

func TestIntegration_Baselines(t *testing.T) {
	conn := setupDB(t)
	repo := NewBaselineRepository(conn)
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	activate(t, NewSettingsRepository(conn), "2026-10")

	created, err := repo.UpsertCurrent(ctx, "2026-10", uuidA, 100, at)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.UpsertCurrent(ctx, "2026-10", uuidA, 250, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)

	row, err := repo.Get(ctx, uuidA)
	require.NoError(t, err)
	assert.Equal(t, int64(100), row.BaselineValue)
	assert.Equal(t, int64(250), row.CurrentValue)
	assert.Equal(t, int64(150), int64(row.Score()))

	_, err = repo.Get(ctx, uuidB)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	rows, err := repo.GetMany(ctx, []string{uuidA, uuidB})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegration_StaleSampleAfterRollover(t *testing.T) {
	conn := setupDB(t)
	settings := NewSettingsRepository(conn)
	baselines := NewBaselineRepository(conn)
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 0, 1, 0, 0, time.UTC)
	activate(t, settings, "2026-09")

	rolled, err := settings.Rollover(ctx, "2026-10")
	require.NoError(t, err)
	require.True(t, rolled)

	_, err = baselines.UpsertCurrent(ctx, "2026-10", uuidA, 40, at)
	assert.ErrorIs(t, err, shared.ErrStalePeriod)

	_, err = settings.CompletePendingReset(ctx)
	require.NoError(t, err)

	_, err = baselines.UpsertCurrent(ctx, "2026-09", uuidA, 250000, at)
	assert.ErrorIs(t, err, shared.ErrStalePeriod)

	created, err := baselines.UpsertCurrent(ctx, "2026-10", uuidA, 40, at)
	require.NoError(t, err)
	assert.True(t, created)

	row, err := baselines.Get(ctx, uuidA)
	require.NoError(t, err)
	assert.Equal(t, int64(40), row.BaselineValue)
}

func TestIntegration_RolloverExactlyOnce(t *testing.T) {
	conn := setupDB(t)
	settings := NewSettingsRepository(conn)
	baselines := NewBaselineRepository(conn)
	ctx := context.Background()

	activate(t, settings, "2026-09")
	_, err := baselines.UpsertCurrent(ctx, "2026-09", uuidA, 10, time.Now())
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rolled, err := settings.Rollover(ctx, "2026-10")
			assert.NoError(t, err)
			if rolled {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	pending, err := settings.ResetPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	wiped, err := settings.CompletePendingReset(ctx)
	require.NoError(t, err)
	assert.True(t, wiped)

	wiped, err = settings.CompletePendingReset(ctx)
	require.NoError(t, err)
	assert.False(t, wiped)

	n, err := baselines.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	active, err := settings.Get(ctx, superlative.SettingActivePeriod)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", active)
}

func TestIntegration_Snapshots(t *testing.T) {
	conn := setupDB(t)
	repo := NewSnapshotRepository(conn)
	ctx := context.Background()

	snap := &superlative.Snapshot{
		PeriodID:   "2026-09",
		Track:      superlative.TrackPrimary,
		Brackets:   []superlative.Bracket{{ID: "bronze", Name: "Bronze", Threshold: 0}},
		Entries:    []superlative.SnapshotEntry{{UUID: uuidA, DisplayName: "Notch", Value: 42}},
		CapturedAt: time.Date(2026, 9, 30, 23, 55, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, snap))

	snap.Entries[0].Value = 50
	require.NoError(t, repo.Save(ctx, snap))

	got, err := repo.Get(ctx, "2026-09", superlative.TrackPrimary)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Entries[0].Value)
	assert.Equal(t, "Bronze", got.Brackets[0].Name)
	assert.True(t, snap.CapturedAt.Equal(got.CapturedAt))

	_, err = repo.Get(ctx, "2026-09", superlative.TrackSecondary)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
