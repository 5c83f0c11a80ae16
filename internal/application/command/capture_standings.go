// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CAPTURE STANDINGS COMMAND
// Ranks the active period for every track and persists the result as a
// snapshot. Once a period ends, its last capture is the frozen history.
// ══════════════════════════════════════════════════════════════════════════════

// LiveLeaderboards builds the live view for a track.
type LiveLeaderboards interface {
	Live(ctx context.Context, track superlative.Track, progress engine.Progress) (*engine.View, error)
}

// SnapshotMetrics records captured snapshots.
type SnapshotMetrics interface {
	IncSnapshot(track string)
}

// CaptureStandingsCommand selects the tracks to capture.
type CaptureStandingsCommand struct {
	// Tracks to capture. Empty means all tracks.
	Tracks []superlative.Track
}

// TrackCapture is the outcome for one track.
type TrackCapture struct {
	Track    superlative.Track
	PeriodID string
	Entries  int
	Skipped  bool
	Err      error
}

// CaptureStandingsResult contains per-track outcomes.
type CaptureStandingsResult struct {
	Tracks     []TrackCapture
	CapturedAt time.Time
}

// Saved returns how many snapshots were written.
func (r *CaptureStandingsResult) Saved() int {
	n := 0
	for _, t := range r.Tracks {
		if !t.Skipped && t.Err == nil {
			n++
		}
	}
	return n
}

// CaptureStandingsHandler handles CaptureStandingsCommand.
type CaptureStandingsHandler struct {
	leaderboards LiveLeaderboards
	snapshots    superlative.SnapshotStore
	clock        timeutil.Clock
	metrics      SnapshotMetrics
	logger       *slog.Logger
}

// NewCaptureStandingsHandler creates the handler. metrics may be nil.
func NewCaptureStandingsHandler(
	leaderboards LiveLeaderboards,
	snapshots superlative.SnapshotStore,
	clock timeutil.Clock,
	metrics SnapshotMetrics,
	log *slog.Logger,
) *CaptureStandingsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &CaptureStandingsHandler{
		leaderboards: leaderboards,
		snapshots:    snapshots,
		clock:        clock,
		metrics:      metrics,
		logger:       log.With(logger.Component("capture_standings")),
	}
}

// Handle captures every requested track. Informational states (no active
// period, empty guild) skip the track. Other failures are collected and
// joined into the returned error after all tracks were attempted.
func (h *CaptureStandingsHandler) Handle(ctx context.Context, cmd CaptureStandingsCommand) (*CaptureStandingsResult, error) {
	tracks := cmd.Tracks
	if len(tracks) == 0 {
		tracks = superlative.Tracks()
	}

	result := &CaptureStandingsResult{CapturedAt: h.clock.Now()}
	var errs []error

	for _, track := range tracks {
		tc := h.captureTrack(ctx, track, result.CapturedAt)
		result.Tracks = append(result.Tracks, tc)
		if tc.Err != nil {
			errs = append(errs, fmt.Errorf("capture %s: %w", track, tc.Err))
		}
	}

	return result, errors.Join(errs...)
}

func (h *CaptureStandingsHandler) captureTrack(ctx context.Context, track superlative.Track, at time.Time) TrackCapture {
	tc := TrackCapture{Track: track}
	log := h.logger.With(logger.Track(track.String()))

	view, err := h.leaderboards.Live(ctx, track, engine.NopProgress{})
	if err != nil {
		if shared.IsInformational(err) {
			log.Info("standings capture skipped", "reason", err.Error())
			tc.Skipped = true
			return tc
		}
		log.Error("standings capture failed", logger.Err(err))
		tc.Err = err
		return tc
	}

	snap := superlative.NewSnapshot(view.Period, track, view.Members, at)
	if err := h.snapshots.Save(ctx, snap); err != nil {
		log.Error("snapshot save failed", logger.Period(view.Period.ID), logger.Err(err))
		tc.Err = err
		return tc
	}

	if h.metrics != nil {
		h.metrics.IncSnapshot(track.String())
	}

	tc.PeriodID = view.Period.ID
	tc.Entries = len(snap.Entries)
	log.Info("standings captured", logger.Period(view.Period.ID), "entries", tc.Entries)
	return tc
}
