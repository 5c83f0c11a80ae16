package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/guildhub/superlatives/internal/application/command"
	"github.com/guildhub/superlatives/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CAPTURE STANDINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

// StandingsCapturer runs the capture command.
type StandingsCapturer interface {
	Handle(ctx context.Context, cmd command.CaptureStandingsCommand) (*command.CaptureStandingsResult, error)
}

// CaptureStandingsJob snapshots the live standings of the active period.
// Scheduled shortly before every hour so the final capture of a period
// lands just before the next one starts.
type CaptureStandingsJob struct {
	capturer StandingsCapturer
	logger   *slog.Logger

	lastResult atomic.Pointer[command.CaptureStandingsResult]
}

// NewCaptureStandingsJob creates the job.
func NewCaptureStandingsJob(capturer StandingsCapturer, log *slog.Logger) *CaptureStandingsJob {
	if log == nil {
		log = slog.Default()
	}
	return &CaptureStandingsJob{
		capturer: capturer,
		logger:   log.With(logger.Component("job"), logger.Operation("capture_standings")),
	}
}

// Name returns the job name.
func (j *CaptureStandingsJob) Name() string {
	return "capture_standings"
}

// Description returns a human-readable description.
func (j *CaptureStandingsJob) Description() string {
	return "Persists the active period's standings for historical lookups"
}

// Run executes the capture.
func (j *CaptureStandingsJob) Run(ctx context.Context) error {
	result, err := j.capturer.Handle(ctx, command.CaptureStandingsCommand{})
	if result != nil {
		j.lastResult.Store(result)
		j.logger.Info("standings capture finished", "saved", result.Saved(), "tracks", len(result.Tracks))
	}
	return err
}

// LastResult returns the result of the last run, or nil.
func (j *CaptureStandingsJob) LastResult() *command.CaptureStandingsResult {
	return j.lastResult.Load()
}
