package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRepository implements superlative.SettingsStore for PostgreSQL.
// Rollover and reset are serialized with row locks on the settings rows.
type SettingsRepository struct {
	conn *Connection
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(conn *Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn}
}

var _ superlative.SettingsStore = (*SettingsRepository)(nil)

const (
	selectSettingForUpdate = `SELECT value FROM bot_settings WHERE key = $1 FOR UPDATE`
	upsertSetting          = `
		INSERT INTO bot_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	ensureSetting = `
		INSERT INTO bot_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`
)

// ─────────────────────────────────────────────────────────────────────────────
// Key-value access
// ─────────────────────────────────────────────────────────────────────────────

// Get returns a setting value.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.conn.QueryRow(ctx, `SELECT value FROM bot_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.NewDomainError("store", "GetSetting", shared.ErrNotFound, "no setting "+key)
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// Set writes a setting value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.conn.Exec(ctx, upsertSetting, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// ResetPending reports whether a baseline wipe is outstanding.
func (r *SettingsRepository) ResetPending(ctx context.Context) (bool, error) {
	value, err := r.Get(ctx, superlative.SettingResetPending)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return parseFlag(value), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Period rollover
// ─────────────────────────────────────────────────────────────────────────────

// Rollover switches the stored active period to nextPeriodID and raises the
// reset flag. Concurrent callers queue on the row lock; the first one to
// commit sees the old value and wins, the rest see nextPeriodID and return false.
func (r *SettingsRepository) Rollover(ctx context.Context, nextPeriodID string) (bool, error) {
	var rolled bool

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		rolled = false

		if err := ensureDefaults(ctx, tx); err != nil {
			return err
		}

		var current string
		if err := tx.QueryRow(ctx, selectSettingForUpdate, superlative.SettingActivePeriod).Scan(&current); err != nil {
			return fmt.Errorf("lock active period: %w", err)
		}
		if current == nextPeriodID {
			return nil
		}

		if _, err := tx.Exec(ctx, upsertSetting, superlative.SettingActivePeriod, nextPeriodID); err != nil {
			return fmt.Errorf("store active period: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertSetting, superlative.SettingResetPending, "true"); err != nil {
			return fmt.Errorf("raise reset flag: %w", err)
		}

		rolled = true
		return nil
	})
	if err != nil {
		return false, r.wrapTxError("Rollover", err)
	}

	return rolled, nil
}

// CompletePendingReset wipes all baselines and clears the flag in one
// transaction. Readers see either the old rows or none.
func (r *SettingsRepository) CompletePendingReset(ctx context.Context) (bool, error) {
	var wiped bool

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		wiped = false

		var flag string
		err := tx.QueryRow(ctx, selectSettingForUpdate, superlative.SettingResetPending).Scan(&flag)
		if err != nil {
			if IsNoRows(err) {
				return nil
			}
			return fmt.Errorf("lock reset flag: %w", err)
		}
		if !parseFlag(flag) {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM superlative_baselines`); err != nil {
			return fmt.Errorf("wipe baselines: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertSetting, superlative.SettingResetPending, "false"); err != nil {
			return fmt.Errorf("clear reset flag: %w", err)
		}

		wiped = true
		return nil
	})
	if err != nil {
		return false, r.wrapTxError("CompletePendingReset", err)
	}

	return wiped, nil
}

func (r *SettingsRepository) wrapTxError(op string, err error) error {
	if IsSerializationFailure(err) {
		return shared.WrapError("store", op, shared.ErrConcurrentModification, "settings row contended", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func ensureDefaults(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, ensureSetting, superlative.SettingActivePeriod, ""); err != nil {
		return fmt.Errorf("ensure active period row: %w", err)
	}
	if _, err := q.Exec(ctx, ensureSetting, superlative.SettingResetPending, "false"); err != nil {
		return fmt.Errorf("ensure reset flag row: %w", err)
	}
	return nil
}

func parseFlag(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}
