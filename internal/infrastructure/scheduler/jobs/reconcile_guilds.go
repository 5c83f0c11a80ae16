// Package jobs contains the scheduled jobs of the superlatives worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE GUILDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// GuildReconciler reconciles one guild's baselines.
type GuildReconciler interface {
	ReconcileGuild(ctx context.Context, guild string) (*engine.ReconcileStats, error)
}

// Locker serialises reconciles of the same guild across processes.
type Locker interface {
	TryLock(ctx context.Context, resource string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// ReconcileGuildsConfig contains configuration for the job.
type ReconcileGuildsConfig struct {
	// Guilds to reconcile, in order.
	Guilds []string

	// LockTTL bounds how long a crashed worker can hold a guild.
	LockTTL time.Duration
}

// ReconcileGuildsJob keeps baselines fresh between leaderboard requests.
type ReconcileGuildsJob struct {
	reconciler GuildReconciler
	locker     Locker
	logger     *slog.Logger
	config     ReconcileGuildsConfig

	lastStats atomic.Value // []*engine.ReconcileStats
}

// NewReconcileGuildsJob creates the job. A nil locker runs without locking.
func NewReconcileGuildsJob(reconciler GuildReconciler, locker Locker, log *slog.Logger, config ReconcileGuildsConfig) *ReconcileGuildsJob {
	if log == nil {
		log = slog.Default()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 10 * time.Minute
	}
	return &ReconcileGuildsJob{
		reconciler: reconciler,
		locker:     locker,
		logger:     log.With(logger.Component("job"), logger.Operation("reconcile_guilds")),
		config:     config,
	}
}

// Name returns the job name.
func (j *ReconcileGuildsJob) Name() string {
	return "reconcile_guilds"
}

// Description returns a human-readable description.
func (j *ReconcileGuildsJob) Description() string {
	return "Samples every guild member and refreshes their competition baselines"
}

// Run reconciles every configured guild. A guild already being reconciled
// elsewhere is skipped. No active period is not an error.
func (j *ReconcileGuildsJob) Run(ctx context.Context) error {
	var (
		all  []*engine.ReconcileStats
		errs []error
	)

	for _, guild := range j.config.Guilds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		stats, err := j.reconcile(ctx, guild)
		switch {
		case errors.Is(err, shared.ErrNoActivePeriod):
			j.logger.Info("no active period, skipping reconcile")
			j.lastStats.Store(all)
			return nil
		case err != nil:
			errs = append(errs, fmt.Errorf("guild %s: %w", guild, err))
		case stats != nil:
			all = append(all, stats)
		}
	}

	j.lastStats.Store(all)
	return errors.Join(errs...)
}

func (j *ReconcileGuildsJob) reconcile(ctx context.Context, guild string) (*engine.ReconcileStats, error) {
	if j.locker != nil {
		unlock, ok, err := j.locker.TryLock(ctx, "reconcile:"+guild, j.config.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock: %w", err)
		}
		if !ok {
			j.logger.Info("guild reconcile already running", logger.Guild(guild))
			return nil, nil
		}
		defer unlock()
	}
	return j.reconciler.ReconcileGuild(ctx, guild)
}

// LastStats returns the per-guild results of the last run.
func (j *ReconcileGuildsJob) LastStats() []*engine.ReconcileStats {
	if v, ok := j.lastStats.Load().([]*engine.ReconcileStats); ok {
		return v
	}
	return nil
}
