package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job" }
func (j *funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"55 * * * *", false},
		{"*/15 9-17 * * 1-5", false},
		{"0,30 * * * *", false},
		{"0 0 1 * *", false},
		{"60 * * * *", true},
		{"* * * *", true},
		{"*/0 * * * *", true},
		{"5-1 * * * *", true},
		{"a * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronExpression_Next(t *testing.T) {
	loc := time.UTC
	base := time.Date(2026, 10, 18, 12, 56, 30, 0, loc)

	tests := []struct {
		expr string
		want time.Time
	}{
		{BeforeEveryHour, time.Date(2026, 10, 18, 13, 55, 0, 0, loc)},
		{EveryHour, time.Date(2026, 10, 18, 13, 0, 0, 0, loc)},
		{Every30Minutes, time.Date(2026, 10, 18, 13, 0, 0, 0, loc)},
		{FirstOfMonthMidnight, time.Date(2026, 11, 1, 0, 0, 0, 0, loc)},
		{"0 9 * * 1", time.Date(2026, 10, 19, 9, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := MustParseCronExpression(tt.expr).Next(base)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCronExpression_NextIsStrictlyAfter(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 55, 0, 0, time.UTC)
	next := MustParseCronExpression(BeforeEveryHour).Next(at)
	assert.Equal(t, 13, next.Hour())
}

func TestIntervalSchedule(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 7, 0, 0, time.UTC)

	assert.Equal(t, at.Add(30*time.Minute), NewIntervalSchedule(30*time.Minute).Next(at))
	assert.Equal(t, time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC), NewAlignedSchedule(30*time.Minute).Next(at))
	assert.True(t, NewIntervalSchedule(0).Next(at).IsZero())
}

func newTestScheduler(clock timeutil.Clock) *Scheduler {
	return New(Config{Logger: logger.Discard(), Clock: clock, MaxConcurrentJobs: 2})
}

func TestScheduler_RegisterDuplicate(t *testing.T) {
	s := newTestScheduler(nil)
	job := &funcJob{name: "a", fn: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)
}

func TestScheduler_RunNowRecordsResult(t *testing.T) {
	s := newTestScheduler(nil)
	boom := errors.New("boom")
	require.NoError(t, s.Register(&funcJob{name: "fail", fn: func(context.Context) error { return boom }}, NewIntervalSchedule(time.Hour)))

	var seen atomic.Int32
	s.OnJobComplete(func(r JobResult) {
		seen.Add(1)
		assert.False(t, r.Success)
		assert.True(t, r.Manual)
	})

	res, err := s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, int32(1), seen.Load())

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Len(t, s.History(10), 1)
}

func TestScheduler_RunNowRefusesOverlap(t *testing.T) {
	s := newTestScheduler(nil)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Register(&funcJob{name: "slow", fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}, NewIntervalSchedule(time.Hour)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background(), "slow")
	}()
	<-started

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)

	close(release)
	<-done
}

func TestScheduler_PanicBecomesError(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Register(&funcJob{name: "panic", fn: func(context.Context) error { panic("oops") }}, NewIntervalSchedule(time.Hour)))

	_, err := s.RunNow(context.Background(), "panic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestScheduler_TickRunsDueJobs(t *testing.T) {
	clock := &timeutil.FixedClock{At: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	s := newTestScheduler(clock)

	var runs atomic.Int32
	require.NoError(t, s.Register(&funcJob{name: "tick", fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, NewIntervalSchedule(time.Minute)))

	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	s.tick()
	s.wg.Wait()
	assert.Equal(t, int32(0), runs.Load())

	clock.At = clock.At.Add(time.Minute)
	s.tick()
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load())

	s.tick()
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
