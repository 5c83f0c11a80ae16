package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_superlative_baselines",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_bot_settings",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_superlative_snapshots",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ─── 001: baselines ─────────────────────────────────────────────────────────

const migration001Up = `
CREATE TABLE IF NOT EXISTS superlative_baselines (
    uuid            TEXT PRIMARY KEY,
    current_value   BIGINT NOT NULL,
    baseline_value  BIGINT NOT NULL,
    last_sampled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT superlative_baselines_uuid_len CHECK (char_length(uuid) = 36)
);

CREATE INDEX IF NOT EXISTS idx_superlative_baselines_sampled
    ON superlative_baselines (last_sampled_at);
`

const migration001Down = `
DROP TABLE IF EXISTS superlative_baselines;
`

// ─── 002: settings ──────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS bot_settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

INSERT INTO bot_settings (key, value) VALUES
    ('superlative_active_period', ''),
    ('superlative_reset_pending', 'false')
ON CONFLICT (key) DO NOTHING;
`

const migration002Down = `
DROP TABLE IF EXISTS bot_settings;
`

// ─── 003: snapshots ─────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS superlative_snapshots (
    period_id   TEXT NOT NULL,
    track       TEXT NOT NULL,
    brackets    JSONB NOT NULL DEFAULT '[]'::jsonb,
    entries     JSONB NOT NULL DEFAULT '[]'::jsonb,
    captured_at TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (period_id, track),
    CONSTRAINT superlative_snapshots_track CHECK (track IN ('primary', 'secondary'))
);
`

const migration003Down = `
DROP TABLE IF EXISTS superlative_snapshots;
`
