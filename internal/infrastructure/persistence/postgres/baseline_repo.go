package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
)

// ══════════════════════════════════════════════════════════════════════════════
// BASELINE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BaselineRepository implements superlative.BaselineStore for PostgreSQL.
type BaselineRepository struct {
	conn *Connection
}

// NewBaselineRepository creates a new BaselineRepository.
func NewBaselineRepository(conn *Connection) *BaselineRepository {
	return &BaselineRepository{conn: conn}
}

var _ superlative.BaselineStore = (*BaselineRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Get returns one player's row.
func (r *BaselineRepository) Get(ctx context.Context, uuid string) (*superlative.BaselineRow, error) {
	query := `
		SELECT uuid, current_value, baseline_value, last_sampled_at
		FROM superlative_baselines
		WHERE uuid = $1
	`

	var row superlative.BaselineRow
	err := r.conn.QueryRow(ctx, query, uuid).Scan(
		&row.UUID, &row.CurrentValue, &row.BaselineValue, &row.LastSampledAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("store", "GetBaseline", shared.ErrNotFound, "no baseline for "+uuid)
		}
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	return &row, nil
}

// GetMany returns the rows that exist for the given players.
func (r *BaselineRepository) GetMany(ctx context.Context, uuids []string) (map[string]*superlative.BaselineRow, error) {
	out := make(map[string]*superlative.BaselineRow, len(uuids))
	if len(uuids) == 0 {
		return out, nil
	}

	query := `
		SELECT uuid, current_value, baseline_value, last_sampled_at
		FROM superlative_baselines
		WHERE uuid = ANY($1)
	`

	rows, err := r.conn.Query(ctx, query, uuids)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row superlative.BaselineRow
		if err := rows.Scan(&row.UUID, &row.CurrentValue, &row.BaselineValue, &row.LastSampledAt); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		out[row.UUID] = &row
	}

	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// UpsertCurrent records the latest value sampled for periodID. A first-seen
// player gets the value as baseline; an existing row only moves current_value.
//
// The settings rows are read FOR SHARE in the same transaction, so the write
// serializes against Rollover and CompletePendingReset (both FOR UPDATE). A
// sample taken for a period that has since rolled over, or written before the
// wipe completes, is rejected with shared.ErrStalePeriod.
func (r *BaselineRepository) UpsertCurrent(ctx context.Context, periodID, uuid string, value int64, at time.Time) (bool, error) {
	// xmax is zero only for a freshly inserted tuple.
	query := `
		INSERT INTO superlative_baselines (uuid, current_value, baseline_value, last_sampled_at)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (uuid) DO UPDATE SET
			current_value   = EXCLUDED.current_value,
			last_sampled_at = EXCLUDED.last_sampled_at
		RETURNING (xmax = 0) AS created
	`

	var created bool
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		active, pending, err := lockPeriodShared(ctx, tx)
		if err != nil {
			return err
		}
		if active != periodID || pending {
			return shared.NewDomainError("store", "UpsertCurrent", shared.ErrStalePeriod,
				"period "+periodID+" is not the active period")
		}

		return tx.QueryRow(ctx, query, uuid, value, at.UTC()).Scan(&created)
	})
	if err != nil {
		if errors.Is(err, shared.ErrStalePeriod) {
			return false, err
		}
		return false, fmt.Errorf("failed to upsert baseline: %w", err)
	}

	return created, nil
}

// lockPeriodShared reads the active period and reset flag under FOR SHARE.
// Missing rows read as no active period.
func lockPeriodShared(ctx context.Context, tx pgx.Tx) (active string, pending bool, err error) {
	rows, err := tx.Query(ctx, `
		SELECT key, value FROM bot_settings
		WHERE key = ANY($1)
		ORDER BY key
		FOR SHARE
	`, []string{superlative.SettingActivePeriod, superlative.SettingResetPending})
	if err != nil {
		return "", false, fmt.Errorf("lock period settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return "", false, fmt.Errorf("scan period settings: %w", err)
		}
		switch key {
		case superlative.SettingActivePeriod:
			active = value
		case superlative.SettingResetPending:
			pending = parseFlag(value)
		}
	}
	return active, pending, rows.Err()
}

// Count returns the number of stored rows.
func (r *BaselineRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM superlative_baselines`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count baselines: %w", err)
	}
	return n, nil
}
