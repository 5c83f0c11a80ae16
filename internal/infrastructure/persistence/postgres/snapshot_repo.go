package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements superlative.SnapshotStore for PostgreSQL.
// Brackets and entries are stored as JSONB documents.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

var _ superlative.SnapshotStore = (*SnapshotRepository)(nil)

type bracketJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

type entryJSON struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"display_name"`
	Value       int64  `json:"value"`
}

// Save stores the snapshot, replacing any previous one for the same period and track.
func (r *SnapshotRepository) Save(ctx context.Context, s *superlative.Snapshot) error {
	brackets := make([]bracketJSON, 0, len(s.Brackets))
	for _, b := range s.Brackets {
		brackets = append(brackets, bracketJSON{ID: b.ID, Name: b.Name, Threshold: b.Threshold})
	}
	entries := make([]entryJSON, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, entryJSON{UUID: e.UUID, DisplayName: e.DisplayName, Value: e.Value})
	}

	bracketsDoc, err := json.Marshal(brackets)
	if err != nil {
		return fmt.Errorf("failed to marshal brackets: %w", err)
	}
	entriesDoc, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	query := `
		INSERT INTO superlative_snapshots (period_id, track, brackets, entries, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (period_id, track) DO UPDATE SET
			brackets    = EXCLUDED.brackets,
			entries     = EXCLUDED.entries,
			captured_at = EXCLUDED.captured_at
	`

	_, err = r.conn.Exec(ctx, query, s.PeriodID, string(s.Track), bracketsDoc, entriesDoc, s.CapturedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Get loads the snapshot for a period and track.
func (r *SnapshotRepository) Get(ctx context.Context, periodID string, track superlative.Track) (*superlative.Snapshot, error) {
	query := `
		SELECT brackets, entries, captured_at
		FROM superlative_snapshots
		WHERE period_id = $1 AND track = $2
	`

	var (
		bracketsDoc []byte
		entriesDoc  []byte
		capturedAt  time.Time
	)
	err := r.conn.QueryRow(ctx, query, periodID, string(track)).Scan(&bracketsDoc, &entriesDoc, &capturedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("store", "GetSnapshot", shared.ErrNotFound,
				fmt.Sprintf("no snapshot for %s/%s", periodID, track))
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var brackets []bracketJSON
	if err := json.Unmarshal(bracketsDoc, &brackets); err != nil {
		return nil, fmt.Errorf("failed to decode brackets: %w", err)
	}
	var entries []entryJSON
	if err := json.Unmarshal(entriesDoc, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}

	snap := &superlative.Snapshot{
		PeriodID:   periodID,
		Track:      track,
		Brackets:   make([]superlative.Bracket, 0, len(brackets)),
		Entries:    make([]superlative.SnapshotEntry, 0, len(entries)),
		CapturedAt: capturedAt,
	}
	for _, b := range brackets {
		snap.Brackets = append(snap.Brackets, superlative.Bracket{ID: b.ID, Name: b.Name, Threshold: b.Threshold})
	}
	for _, e := range entries {
		snap.Entries = append(snap.Entries, superlative.SnapshotEntry{UUID: e.UUID, DisplayName: e.DisplayName, Value: e.Value})
	}

	return snap, nil
}
