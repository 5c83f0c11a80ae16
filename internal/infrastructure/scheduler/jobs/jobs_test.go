package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/application/command"
	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
)

type stubReconciler struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *stubReconciler) ReconcileGuild(_ context.Context, guild string) (*engine.ReconcileStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, guild)
	if err := s.errs[guild]; err != nil {
		return nil, err
	}
	return &engine.ReconcileStats{Guild: guild, Members: 2, Updated: 2}, nil
}

func TestReconcileGuildsJob_RunsEveryGuild(t *testing.T) {
	rec := &stubReconciler{errs: map[string]error{"b": errors.New("upstream down")}}
	job := NewReconcileGuildsJob(rec, engine.NewLocalLocker(), logger.Discard(), ReconcileGuildsConfig{Guilds: []string{"a", "b"}})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guild b")
	assert.Equal(t, []string{"a", "b"}, rec.calls)
	require.Len(t, job.LastStats(), 1)
	assert.Equal(t, "a", job.LastStats()[0].Guild)
}

func TestReconcileGuildsJob_NoActivePeriodIsNotAFailure(t *testing.T) {
	noPeriod := shared.NewDomainError("superlative", "Active", shared.ErrNoActivePeriod, "none")
	rec := &stubReconciler{errs: map[string]error{"a": noPeriod}}
	job := NewReconcileGuildsJob(rec, nil, logger.Discard(), ReconcileGuildsConfig{Guilds: []string{"a", "b"}})

	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"a"}, rec.calls)
}

func TestReconcileGuildsJob_SkipsLockedGuild(t *testing.T) {
	locker := engine.NewLocalLocker()
	unlock, ok, err := locker.TryLock(context.Background(), "reconcile:a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	rec := &stubReconciler{}
	job := NewReconcileGuildsJob(rec, locker, logger.Discard(), ReconcileGuildsConfig{Guilds: []string{"a", "b"}})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"b"}, rec.calls)
}

type stubCapturer struct {
	result *command.CaptureStandingsResult
	err    error
}

func (s stubCapturer) Handle(context.Context, command.CaptureStandingsCommand) (*command.CaptureStandingsResult, error) {
	return s.result, s.err
}

func TestCaptureStandingsJob_KeepsLastResult(t *testing.T) {
	res := &command.CaptureStandingsResult{Tracks: []command.TrackCapture{
		{Track: superlative.TrackPrimary, PeriodID: "oct", Entries: 3},
		{Track: superlative.TrackSecondary, Skipped: true},
	}}
	job := NewCaptureStandingsJob(stubCapturer{result: res}, logger.Discard())

	assert.Nil(t, job.LastResult())
	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, job.LastResult())
	assert.Equal(t, 1, job.LastResult().Saved())
	assert.Equal(t, "capture_standings", job.Name())
}
