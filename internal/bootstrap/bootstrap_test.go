package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/config"
	"github.com/guildhub/superlatives/internal/infrastructure/persistence/memory"
	"github.com/guildhub/superlatives/internal/infrastructure/scheduler"
	"github.com/guildhub/superlatives/pkg/logger"
)

const testPeriods = `
periods:
  - id: oct-wars
    title: October Wars
    start: "2026-10"
    metric: wars
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "periods.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPeriods), 0o600))

	cfg := config.Default()
	cfg.App.Location = time.UTC
	cfg.PeriodsFile = path
	cfg.GameAPI.APIKey = "test-key"
	cfg.Redis.Disabled = true
	cfg.Guilds.Primary = "Sky Wardens"
	return cfg
}

func TestBuild_InMemory(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Cache)
	assert.IsType(t, &memory.BaselineStore{}, app.Baselines)
	assert.Equal(t, 1, app.Registry.Len())
}

func TestNewScheduler_DisabledJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DisabledJobs = []string{"capture_standings"}

	app, err := Build(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer app.Close()

	sched, err := app.NewScheduler()
	require.NoError(t, err)

	enabled := map[string]bool{}
	for _, job := range sched.ListJobs() {
		enabled[job.Name] = job.Enabled
	}
	assert.Equal(t, map[string]bool{"capture_standings": false, "reconcile_guilds": true}, enabled)
}

func TestNewScheduler_UnknownDisabledJob(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DisabledJobs = []string{"daily_digest"}

	app, err := Build(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer app.Close()

	_, err = app.NewScheduler()
	assert.ErrorIs(t, err, scheduler.ErrJobNotFound)
}
