// Package memory implements the superlative stores in process memory.
// It backs local runs without PostgreSQL or Redis and the application tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED STATE
// ══════════════════════════════════════════════════════════════════════════════

// Store holds baselines and settings under one lock so that rollover and
// reset are atomic with respect to baseline reads and writes.
type Store struct {
	mu        sync.RWMutex
	baselines map[string]superlative.BaselineRow
	settings  map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		baselines: make(map[string]superlative.BaselineRow),
		settings:  make(map[string]string),
	}
}

// Baselines returns the BaselineStore view.
func (s *Store) Baselines() *BaselineStore { return &BaselineStore{s: s} }

// Settings returns the SettingsStore view.
func (s *Store) Settings() *SettingsStore { return &SettingsStore{s: s} }

// ══════════════════════════════════════════════════════════════════════════════
// BASELINES
// ══════════════════════════════════════════════════════════════════════════════

// BaselineStore implements superlative.BaselineStore.
type BaselineStore struct{ s *Store }

var _ superlative.BaselineStore = (*BaselineStore)(nil)

func (b *BaselineStore) Get(_ context.Context, uuid string) (*superlative.BaselineRow, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	row, ok := b.s.baselines[uuid]
	if !ok {
		return nil, shared.NewDomainError("store", "GetBaseline", shared.ErrNotFound, "no baseline for "+uuid)
	}
	return &row, nil
}

func (b *BaselineStore) GetMany(_ context.Context, uuids []string) (map[string]*superlative.BaselineRow, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	out := make(map[string]*superlative.BaselineRow, len(uuids))
	for _, id := range uuids {
		if row, ok := b.s.baselines[id]; ok {
			out[id] = &row
		}
	}
	return out, nil
}

func (b *BaselineStore) UpsertCurrent(_ context.Context, periodID, uuid string, value int64, at time.Time) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if b.s.settings[superlative.SettingActivePeriod] != periodID || flag(b.s.settings[superlative.SettingResetPending]) {
		return false, shared.NewDomainError("store", "UpsertCurrent", shared.ErrStalePeriod,
			"period "+periodID+" is not the active period")
	}

	row, ok := b.s.baselines[uuid]
	if !ok {
		b.s.baselines[uuid] = *superlative.NewBaselineRow(uuid, value, at)
		return true, nil
	}
	row.Observe(value, at)
	b.s.baselines[uuid] = row
	return false, nil
}

// Seed writes a full row. Used to set up fixtures with a non-trivial baseline.
func (b *BaselineStore) Seed(row superlative.BaselineRow) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.baselines[row.UUID] = row
}

// Len returns the number of rows.
func (b *BaselineStore) Len() int {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	return len(b.s.baselines)
}

func (b *BaselineStore) Count(_ context.Context) (int64, error) {
	return int64(b.Len()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// SettingsStore implements superlative.SettingsStore.
type SettingsStore struct{ s *Store }

var _ superlative.SettingsStore = (*SettingsStore)(nil)

func (st *SettingsStore) Get(_ context.Context, key string) (string, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()

	v, ok := st.s.settings[key]
	if !ok {
		return "", shared.NewDomainError("store", "GetSetting", shared.ErrNotFound, "no setting "+key)
	}
	return v, nil
}

func (st *SettingsStore) Set(_ context.Context, key, value string) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.s.settings[key] = value
	return nil
}

func (st *SettingsStore) Rollover(_ context.Context, nextPeriodID string) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	if cur, ok := st.s.settings[superlative.SettingActivePeriod]; ok && cur == nextPeriodID {
		return false, nil
	}
	st.s.settings[superlative.SettingActivePeriod] = nextPeriodID
	st.s.settings[superlative.SettingResetPending] = "true"
	return true, nil
}

func (st *SettingsStore) ResetPending(_ context.Context) (bool, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	return flag(st.s.settings[superlative.SettingResetPending]), nil
}

func (st *SettingsStore) CompletePendingReset(_ context.Context) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	if !flag(st.s.settings[superlative.SettingResetPending]) {
		return false, nil
	}
	st.s.baselines = make(map[string]superlative.BaselineRow)
	st.s.settings[superlative.SettingResetPending] = "false"
	return true, nil
}

func flag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

type snapshotKey struct {
	period string
	track  superlative.Track
}

// SnapshotStore implements superlative.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	items map[snapshotKey]superlative.Snapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{items: make(map[snapshotKey]superlative.Snapshot)}
}

var _ superlative.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Save(_ context.Context, snap *superlative.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	cp.Brackets = append([]superlative.Bracket(nil), snap.Brackets...)
	cp.Entries = append([]superlative.SnapshotEntry(nil), snap.Entries...)
	s.items[snapshotKey{snap.PeriodID, snap.Track}] = cp
	return nil
}

func (s *SnapshotStore) Get(_ context.Context, periodID string, track superlative.Track) (*superlative.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.items[snapshotKey{periodID, track}]
	if !ok {
		return nil, shared.NewDomainError("store", "GetSnapshot", shared.ErrNotFound, "no snapshot for "+periodID)
	}
	snap.Entries = append([]superlative.SnapshotEntry(nil), snap.Entries...)
	return &snap, nil
}

// PeriodIDs lists periods with at least one snapshot, ascending.
func (s *SnapshotStore) PeriodIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.items {
		seen[k.period] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER CACHE
// ══════════════════════════════════════════════════════════════════════════════

type rosterItem struct {
	roster    superlative.Roster
	expiresAt time.Time
}

// RosterCache implements superlative.RosterCache with lazy expiry.
type RosterCache struct {
	mu    sync.Mutex
	clock timeutil.Clock
	items map[string]rosterItem
}

// NewRosterCache creates an empty cache. A nil clock means the system clock.
func NewRosterCache(clock timeutil.Clock) *RosterCache {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RosterCache{clock: clock, items: make(map[string]rosterItem)}
}

var _ superlative.RosterCache = (*RosterCache)(nil)

func (c *RosterCache) Get(_ context.Context, guild string) (*superlative.Roster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[guild]
	if !ok || !c.clock.Now().Before(item.expiresAt) {
		delete(c.items, guild)
		return nil, shared.NewDomainError("cache", "GetRoster", shared.ErrNotFound, "roster not cached")
	}
	r := item.roster
	return &r, nil
}

func (c *RosterCache) Set(_ context.Context, roster *superlative.Roster, ttl time.Duration) error {
	if roster == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[roster.Guild] = rosterItem{roster: *roster, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}
