package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW
// ══════════════════════════════════════════════════════════════════════════════

// ViewKind - откуда взята таблица.
type ViewKind string

const (
	ViewLive       ViewKind = "live"
	ViewHistorical ViewKind = "historical"
	ViewUpcoming   ViewKind = "upcoming"
)

// View - таблица лидеров, готовая к отображению.
// Для ViewUpcoming Members пуст: показываются только название и пороги.
type View struct {
	Kind     ViewKind
	Track    superlative.Track
	Guild    string
	Period   *superlative.Period
	Brackets []superlative.Bracket
	Members  []superlative.RankedMember

	GeneratedAt time.Time

	// CapturedAt - время фиксации снапшота, только для ViewHistorical.
	CapturedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARDS
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardsConfig - настройки сборки таблиц.
type LeaderboardsConfig struct {
	// Guilds - имя гильдии для каждого трека.
	Guilds map[superlative.Track]string

	// RecoveryAttempts - повторы ранжирования после самовосстановления.
	RecoveryAttempts int
}

// Leaderboards собирает живые и исторические таблицы.
type Leaderboards struct {
	selector   *Selector
	reconciler *Reconciler
	recovery   *Recovery
	snapshots  superlative.SnapshotStore
	clock      timeutil.Clock
	metrics    Metrics
	logger     *slog.Logger
	config     LeaderboardsConfig
}

// LeaderboardsDeps - зависимости Leaderboards.
type LeaderboardsDeps struct {
	Selector   *Selector
	Reconciler *Reconciler
	Recovery   *Recovery
	Snapshots  superlative.SnapshotStore
	Clock      timeutil.Clock
	Metrics    Metrics
	Logger     *slog.Logger
}

// NewLeaderboards создаёт Leaderboards.
func NewLeaderboards(deps LeaderboardsDeps, config LeaderboardsConfig) *Leaderboards {
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.RecoveryAttempts < 0 {
		config.RecoveryAttempts = DefaultRecoveryAttempts
	}
	return &Leaderboards{
		selector:   deps.Selector,
		reconciler: deps.Reconciler,
		recovery:   deps.Recovery,
		snapshots:  deps.Snapshots,
		clock:      deps.Clock,
		metrics:    orNop(deps.Metrics),
		logger:     deps.Logger.With(logger.Component("leaderboards")),
		config:     config,
	}
}

// GuildFor возвращает гильдию трека.
func (l *Leaderboards) GuildFor(track superlative.Track) (string, error) {
	guild, ok := l.config.Guilds[track]
	if !ok || guild == "" {
		return "", shared.NewDomainError("superlative", "GuildFor", shared.ErrConfig,
			fmt.Sprintf("no guild configured for track %s", track))
	}
	return guild, nil
}

// Periods возвращает все периоды по возрастанию начала.
func (l *Leaderboards) Periods() []*superlative.Period {
	return l.selector.Registry().All()
}

// ─────────────────────────────────────────────────────────────────────────────
// Live
// ─────────────────────────────────────────────────────────────────────────────

// Live строит таблицу трека по активному периоду.
//
// Фоновая сверка гильдии запускается до ранжирования и идёт параллельно,
// поэтому текущий ответ может отражать данные предыдущей сверки.
func (l *Leaderboards) Live(ctx context.Context, track superlative.Track, progress Progress) (*View, error) {
	view, err := l.live(ctx, track, progress)
	l.metrics.ObserveLeaderboard(track.String(), string(ViewLive), outcomeOf(err))
	return view, err
}

func (l *Leaderboards) live(ctx context.Context, track superlative.Track, progress Progress) (*View, error) {
	guild, err := l.GuildFor(track)
	if err != nil {
		return nil, err
	}
	log := l.logger.With(logger.Track(track.String()), logger.Guild(guild))

	l.reconciler.ReconcileInBackground(ctx, guild)

	period, err := l.selector.RequireActive(ctx, l.clock.Now())
	if err != nil {
		return nil, err
	}

	report(ctx, progress, StatusFetchingGuild, log)
	roster, err := l.reconciler.CachedRoster(ctx, guild)
	if err != nil {
		return nil, err
	}

	report(ctx, progress, StatusFetchingPlayers, log)
	ranked, err := l.recovery.RankWithRecovery(ctx, period, track, roster, guild, l.config.RecoveryAttempts)
	if err != nil {
		return nil, err
	}

	report(ctx, progress, StatusRanking, log)
	if len(ranked) == 0 {
		return nil, shared.NewDomainError("superlative", "Live", shared.ErrEmptyLeaderboard,
			fmt.Sprintf("guild %s has no members to rank", guild))
	}

	return &View{
		Kind:        ViewLive,
		Track:       track,
		Guild:       guild,
		Period:      period,
		Brackets:    period.BracketsFor(track),
		Members:     ranked,
		GeneratedAt: l.clock.Now(),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Historical
// ─────────────────────────────────────────────────────────────────────────────

// ResolvePeriod находит период по ID или по месяцу в формате YYYY-MM.
func (l *Leaderboards) ResolvePeriod(ref string) (*superlative.Period, error) {
	ref = strings.TrimSpace(ref)
	registry := l.selector.Registry()

	if p, ok := registry.Get(ref); ok {
		return p, nil
	}
	if month, err := timeutil.ParseMonth(ref); err == nil {
		if p := registry.StartingInMonth(month); p != nil {
			return p, nil
		}
		return nil, shared.NewDomainError("superlative", "ResolvePeriod", shared.ErrInvalidHistoricalDate,
			fmt.Sprintf("no competition started in %s", timeutil.HumanMonth(month)))
	}
	return nil, shared.NewDomainError("superlative", "ResolvePeriod", shared.ErrInvalidHistoricalDate,
		fmt.Sprintf("%q is neither a period id nor a YYYY-MM month", ref))
}

// Historical строит таблицу прошедшего периода из снапшота.
//
// Будущий период отдаётся без рейтинга, только с названием и порогами.
// Активный период строится вживую. Прошедший период, даже начавшийся
// в текущем месяце, читается из снапшота.
func (l *Leaderboards) Historical(ctx context.Context, ref string, track superlative.Track, progress Progress) (*View, error) {
	period, err := l.ResolvePeriod(ref)
	if err != nil {
		l.metrics.ObserveLeaderboard(track.String(), string(ViewHistorical), outcomeOf(err))
		return nil, err
	}

	now := l.clock.Now()

	if period.IsUpcoming(now) {
		l.metrics.ObserveLeaderboard(track.String(), string(ViewUpcoming), "ok")
		guild, _ := l.GuildFor(track)
		return &View{
			Kind:        ViewUpcoming,
			Track:       track,
			Guild:       guild,
			Period:      period,
			Brackets:    period.BracketsFor(track),
			GeneratedAt: now,
		}, nil
	}

	if active := l.selector.Registry().ActiveAt(now); active != nil && active.ID == period.ID {
		return l.Live(ctx, track, progress)
	}

	view, err := l.historical(ctx, period, track)
	l.metrics.ObserveLeaderboard(track.String(), string(ViewHistorical), outcomeOf(err))
	return view, err
}

func (l *Leaderboards) historical(ctx context.Context, period *superlative.Period, track superlative.Track) (*View, error) {
	snap, err := l.snapshots.Get(ctx, period.ID, track)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.WrapError("superlative", "Historical", shared.ErrSnapshotUnavailable,
				fmt.Sprintf("no standings were captured for %s", period.Title), err)
		}
		return nil, fmt.Errorf("read snapshot %s/%s: %w", period.ID, track, err)
	}
	if snap.IsEmpty() {
		return nil, shared.NewDomainError("superlative", "Historical", shared.ErrEmptyLeaderboard,
			fmt.Sprintf("nobody placed in %s", period.Title))
	}

	guild, _ := l.GuildFor(track)
	return &View{
		Kind:        ViewHistorical,
		Track:       track,
		Guild:       guild,
		Period:      period,
		Brackets:    snap.Brackets,
		Members:     snap.Ranked(period.Metric),
		GeneratedAt: l.clock.Now(),
		CapturedAt:  snap.CapturedAt,
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case shared.IsInformational(err):
		return "informational"
	case shared.IsRateLimited(err):
		return "rate_limited"
	default:
		return "error"
	}
}
