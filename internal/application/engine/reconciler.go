package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BASELINE RECONCILER
// Снимает текущие значения метрики для всех участников гильдии и записывает их.
// Новые игроки получают базу, равную текущему значению.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcilerConfig - настройки сверки.
type ReconcilerConfig struct {
	// Concurrency - сколько участников обрабатывается одновременно.
	Concurrency int

	// LockTTL - время жизни блокировки фоновой сверки гильдии.
	LockTTL time.Duration

	// JobTimeout ограничивает фоновую сверку.
	JobTimeout time.Duration

	// RosterTTL - время жизни состава в кеше.
	RosterTTL time.Duration
}

// DefaultReconcilerConfig возвращает настройки по умолчанию.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Concurrency: 8,
		LockTTL:     10 * time.Minute,
		JobTimeout:  10 * time.Minute,
		RosterTTL:   5 * time.Minute,
	}
}

// MemberFailure - ошибка по одному участнику.
type MemberFailure struct {
	UUID string
	Err  error
}

// ReconcileStats - итог сверки гильдии.
type ReconcileStats struct {
	Guild     string
	PeriodID  string
	Members   int
	Updated   int
	Created   int
	Failed    int
	// Stale - записи, отброшенные из-за смены периода во время сверки.
	Stale     int
	Failures  []MemberFailure
	StartedAt time.Time
	Duration  time.Duration
}

// Reconciler сверяет базовые значения с игровым API.
type Reconciler struct {
	selector  *Selector
	game      superlative.GameStats
	baselines superlative.BaselineStore
	rosters   superlative.RosterCache
	locker    Locker
	clock     timeutil.Clock
	metrics   Metrics
	logger    *slog.Logger
	config    ReconcilerConfig

	// background отслеживает фоновые сверки для корректной остановки.
	background sync.WaitGroup
}

// ReconcilerDeps - зависимости Reconciler. Rosters и Locker необязательны.
type ReconcilerDeps struct {
	Selector  *Selector
	Game      superlative.GameStats
	Baselines superlative.BaselineStore
	Rosters   superlative.RosterCache
	Locker    Locker
	Clock     timeutil.Clock
	Metrics   Metrics
	Logger    *slog.Logger
}

// NewReconciler создаёт Reconciler.
func NewReconciler(deps ReconcilerDeps, config ReconcilerConfig) *Reconciler {
	def := DefaultReconcilerConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.RosterTTL <= 0 {
		config.RosterTTL = def.RosterTTL
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Reconciler{
		selector:  deps.Selector,
		game:      deps.Game,
		baselines: deps.Baselines,
		rosters:   deps.Rosters,
		locker:    deps.Locker,
		clock:     deps.Clock,
		metrics:   orNop(deps.Metrics),
		logger:    deps.Logger.With(logger.Component("reconciler")),
		config:    config,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Roster
// ─────────────────────────────────────────────────────────────────────────────

// FetchRoster читает состав гильдии из API и обновляет кеш.
func (r *Reconciler) FetchRoster(ctx context.Context, guild string) (*superlative.Roster, error) {
	roster, err := r.game.GetGuildRoster(ctx, guild)
	if err != nil {
		return nil, fmt.Errorf("fetch roster %s: %w", guild, err)
	}
	if r.rosters != nil {
		if err := r.rosters.Set(ctx, roster, r.config.RosterTTL); err != nil {
			r.logger.Warn("roster cache write failed", logger.Guild(guild), logger.Err(err))
		}
	}
	return roster, nil
}

// CachedRoster отдаёт состав из кеша, при промахе - из API.
func (r *Reconciler) CachedRoster(ctx context.Context, guild string) (*superlative.Roster, error) {
	if r.rosters != nil {
		if roster, err := r.rosters.Get(ctx, guild); err == nil && roster != nil {
			return roster, nil
		}
	}
	return r.FetchRoster(ctx, guild)
}

// ─────────────────────────────────────────────────────────────────────────────
// Reconcile
// ─────────────────────────────────────────────────────────────────────────────

// ReconcileGuild сверяет всех участников гильдии по метрике активного периода.
// Ошибка получения состава прерывает сверку; ошибки по отдельным участникам
// только считаются и логируются.
func (r *Reconciler) ReconcileGuild(ctx context.Context, guild string) (*ReconcileStats, error) {
	period, err := r.selector.RequireActive(ctx, r.clock.Now())
	if err != nil {
		return nil, err
	}

	roster, err := r.FetchRoster(ctx, guild)
	if err != nil {
		r.metrics.ObserveReconcile(guild, "roster_failed", 0, 0, 0, 0)
		return nil, err
	}

	return r.ReconcileRoster(ctx, period, roster)
}

// ReconcileRoster сверяет уже полученный состав.
func (r *Reconciler) ReconcileRoster(ctx context.Context, period *superlative.Period, roster *superlative.Roster) (*ReconcileStats, error) {
	stats := &ReconcileStats{
		Guild:     roster.Guild,
		PeriodID:  period.ID,
		Members:   roster.Len(),
		StartedAt: r.clock.Now(),
	}
	began := time.Now()
	log := r.logger.With(logger.Guild(roster.Guild), logger.Period(period.ID))

	var (
		mu    sync.Mutex
		g     errgroup.Group
		stale atomic.Bool
	)
	g.SetLimit(r.config.Concurrency)

	for _, member := range roster.Members {
		member := member
		g.Go(func() error {
			// Период уже сменился: остальные значения тоже устарели.
			if stale.Load() {
				mu.Lock()
				stats.Stale++
				mu.Unlock()
				return nil
			}

			created, err := r.reconcileMember(ctx, period, member)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, shared.ErrStalePeriod):
				stale.Store(true)
				stats.Stale++
			case err != nil:
				stats.Failed++
				stats.Failures = append(stats.Failures, MemberFailure{UUID: member.UUID, Err: err})
				log.Warn("member reconcile failed", logger.Player(member.UUID), logger.Err(err))
			case created:
				stats.Created++
			default:
				stats.Updated++
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = time.Since(began)

	outcome := "success"
	switch {
	case stats.Stale > 0:
		outcome = "stale"
		log.Info("period changed during reconcile, stale samples dropped", "stale", stats.Stale)
	case stats.Failed > 0:
		outcome = "partial"
	}
	r.metrics.ObserveReconcile(roster.Guild, outcome, stats.Updated, stats.Created, stats.Failed, stats.Duration)

	log.Info("guild reconciled",
		"members", stats.Members,
		"updated", stats.Updated,
		"created", stats.Created,
		"failed", stats.Failed,
		logger.Latency(stats.Duration),
	)
	return stats, nil
}

func (r *Reconciler) reconcileMember(ctx context.Context, period *superlative.Period, member superlative.RosterEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var stats *superlative.PlayerStats
	if period.Metric.NeedsPlayerStats() {
		s, err := r.game.GetPlayerStats(ctx, member.UUID)
		if err != nil {
			return false, fmt.Errorf("player stats: %w", err)
		}
		stats = s
	}

	value, err := superlative.Sample(period.Metric, member, stats)
	if err != nil {
		return false, err
	}

	created, err := r.baselines.UpsertCurrent(ctx, period.ID, member.UUID, value, r.clock.Now())
	if err != nil {
		return false, fmt.Errorf("upsert baseline: %w", err)
	}
	return created, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Background
// ─────────────────────────────────────────────────────────────────────────────

// ReconcileInBackground запускает сверку гильдии, не дожидаясь результата.
// Сверка не зависит от отмены запроса и ограничена JobTimeout. Если сверка
// этой гильдии уже идёт, новая не запускается. Возвращает true, если запущена.
func (r *Reconciler) ReconcileInBackground(ctx context.Context, guild string) bool {
	detached := context.WithoutCancel(ctx)

	unlock, ok, err := r.locker.TryLock(detached, "reconcile:"+guild, r.config.LockTTL)
	if err != nil {
		r.logger.Warn("reconcile lock failed", logger.Guild(guild), logger.Err(err))
		return false
	}
	if !ok {
		r.logger.Debug("reconcile already running", logger.Guild(guild))
		return false
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		defer unlock()

		jobCtx, cancel := context.WithTimeout(detached, r.config.JobTimeout)
		defer cancel()

		if _, err := r.ReconcileGuild(jobCtx, guild); err != nil {
			r.logger.Warn("background reconcile failed", logger.Guild(guild), logger.Err(err))
		}
	}()
	return true
}

// Wait дожидается завершения фоновых сверок.
func (r *Reconciler) Wait() {
	r.background.Wait()
}
