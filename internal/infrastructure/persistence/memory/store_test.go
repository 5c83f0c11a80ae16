package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

func TestBaselineStore_UpsertKeepsBaseline(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	b := store.Baselines()
	require.NoError(t, store.Settings().Set(ctx, superlative.SettingActivePeriod, "2026-10"))
	at := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)

	created, err := b.UpsertCurrent(ctx, "2026-10", "a", 100, at)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.UpsertCurrent(ctx, "2026-10", "a", 140, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)

	row, err := b.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), row.BaselineValue)
	assert.Equal(t, shared.Score(40), row.Score())

	_, err = b.Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	rows, err := b.GetMany(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBaselineStore_RejectsStalePeriod(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	b := store.Baselines()
	settings := store.Settings()
	at := time.Date(2026, 10, 1, 0, 1, 0, 0, time.UTC)

	rolled, err := settings.Rollover(ctx, "2026-10")
	require.NoError(t, err)
	require.True(t, rolled)

	// Wipe still pending: even the new period may not write yet.
	_, err = b.UpsertCurrent(ctx, "2026-10", "a", 40, at)
	assert.ErrorIs(t, err, shared.ErrStalePeriod)

	_, err = settings.CompletePendingReset(ctx)
	require.NoError(t, err)

	_, err = b.UpsertCurrent(ctx, "2026-09", "a", 250000, at)
	assert.ErrorIs(t, err, shared.ErrStalePeriod)
	assert.Zero(t, b.Len())

	created, err := b.UpsertCurrent(ctx, "2026-10", "a", 40, at)
	require.NoError(t, err)
	assert.True(t, created)

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSettingsStore_RolloverExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	settings := store.Settings()
	store.Baselines().Seed(superlative.BaselineRow{UUID: "a", CurrentValue: 5})

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 16; i++ {
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
	assert.Zero(t, store.Baselines().Len())

	wiped, err = settings.CompletePendingReset(ctx)
	require.NoError(t, err)
	assert.False(t, wiped)
}

func TestSnapshotStore_SaveCopies(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	snap := &superlative.Snapshot{
		PeriodID: "2026-09",
		Track:    superlative.TrackPrimary,
		Entries:  []superlative.SnapshotEntry{{UUID: "a", Value: 3}},
	}
	require.NoError(t, s.Save(ctx, snap))
	snap.Entries[0].Value = 99

	got, err := s.Get(ctx, "2026-09", superlative.TrackPrimary)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Entries[0].Value)
	assert.Equal(t, []string{"2026-09"}, s.PeriodIDs())

	_, err = s.Get(ctx, "2026-09", superlative.TrackSecondary)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRosterCache_Expires(t *testing.T) {
	ctx := context.Background()
	clock := &timeutil.FixedClock{At: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	c := NewRosterCache(clock)

	require.NoError(t, c.Set(ctx, &superlative.Roster{Guild: "Aequitas"}, time.Minute))

	got, err := c.Get(ctx, "Aequitas")
	require.NoError(t, err)
	assert.Equal(t, "Aequitas", got.Guild)

	clock.At = clock.At.Add(time.Minute)
	_, err = c.Get(ctx, "Aequitas")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
