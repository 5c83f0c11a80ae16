// Package bootstrap собирает зависимости приложения из конфигурации.
// Используется и ботом, и worker, чтобы оба процесса работали с одним
// и тем же движком, хранилищами и клиентами.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guildhub/superlatives/config"
	"github.com/guildhub/superlatives/internal/application/command"
	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/application/query"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/internal/infrastructure/external/gameapi"
	"github.com/guildhub/superlatives/internal/infrastructure/metrics"
	"github.com/guildhub/superlatives/internal/infrastructure/persistence/memory"
	"github.com/guildhub/superlatives/internal/infrastructure/persistence/postgres"
	"github.com/guildhub/superlatives/internal/infrastructure/persistence/redis"
	"github.com/guildhub/superlatives/internal/infrastructure/scheduler"
	"github.com/guildhub/superlatives/internal/infrastructure/scheduler/jobs"
	"github.com/guildhub/superlatives/internal/interface/http/handlers"
	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// App - собранное приложение.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clock   timeutil.Clock
	Metrics *metrics.Manager

	Registry *superlative.Registry

	// Хранилища
	DB        *postgres.Connection // nil в режиме без PostgreSQL
	Cache     *redis.Cache         // nil в режиме без Redis
	Baselines superlative.BaselineStore
	Settings  superlative.SettingsStore
	Snapshots superlative.SnapshotStore
	Rosters   superlative.RosterCache
	Locker    engine.Locker

	Game *gameapi.Client

	// Движок
	Selector     *engine.Selector
	Reconciler   *engine.Reconciler
	Leaderboards *engine.Leaderboards

	// Запросы и команды
	LeaderboardQuery *query.GetLeaderboardHandler
	HistoryQuery     *query.GetHistoryHandler
	PeriodsQuery     *query.ListPeriodsHandler
	CaptureCommand   *command.CaptureStandingsHandler

	Health *handlers.CompositeHealthChecker

	closers []func()
}

// NewLogger создаёт логгер по настройкам наблюдаемости.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	opts.Service = cfg.App.Name
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	log := logger.New(opts)
	slog.SetDefault(log)
	return log
}

// Build собирает приложение. При ошибке всё уже открытое закрывается здесь же.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	app := &App{
		Config:  cfg,
		Logger:  log,
		Clock:   timeutil.SystemClock{},
		Metrics: metrics.NewManager(metrics.WithRuntimeCollectors()),
		Health:  handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЧАСОВОЙ ПОЯС И ПЕРИОДЫ
	// ─────────────────────────────────────────────────────────────────────────
	timeutil.SetLocation(cfg.App.Location)

	app.Registry, err = config.LoadPeriods(cfg.PeriodsFile, cfg.App.Location)
	if err != nil {
		return nil, err
	}
	log.Info("periods loaded", "count", len(app.Registry.All()), "file", cfg.PeriodsFile)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ (PostgreSQL или память)
	// ─────────────────────────────────────────────────────────────────────────
	if err = app.openStore(ctx); err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (кеш составов, снимков и блокировки)
	// ─────────────────────────────────────────────────────────────────────────
	if err = app.openCache(ctx); err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИГРОВОЙ API
	// ─────────────────────────────────────────────────────────────────────────
	gameCfg := gameapi.DefaultClientConfig(cfg.GameAPI.BaseURL, cfg.GameAPI.APIKey)
	gameCfg.Timeout = cfg.GameAPI.RequestTimeout
	gameCfg.RateLimit = cfg.GameAPI.RateLimit
	gameCfg.RateLimitBurst = cfg.GameAPI.RateLimitBurst
	gameCfg.MaxRetries = cfg.GameAPI.MaxRetries
	gameCfg.RetryBaseDelay = cfg.GameAPI.RetryBaseDelay
	gameCfg.RetryMaxDelay = cfg.GameAPI.RetryMaxDelay
	gameCfg.BreakerThreshold = cfg.GameAPI.CircuitBreakerThreshold
	gameCfg.BreakerTimeout = cfg.GameAPI.CircuitBreakerTimeout
	gameCfg.Logger = log
	gameCfg.Metrics = app.Metrics

	app.Game, err = gameapi.NewClient(gameCfg)
	if err != nil {
		return nil, err
	}
	app.Health.AddOptionalCheck("game_api", handlers.NewBreakerCheck(app.Game))

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ДВИЖОК
	// ─────────────────────────────────────────────────────────────────────────
	app.Selector = engine.NewSelector(app.Registry, app.Settings, app.Metrics, log)

	reconcileCfg := engine.DefaultReconcilerConfig()
	reconcileCfg.Concurrency = cfg.Reconcile.Concurrency
	reconcileCfg.LockTTL = cfg.Reconcile.LockTTL
	reconcileCfg.JobTimeout = cfg.Reconcile.JobTimeout
	if cfg.Redis.RosterTTL > 0 {
		reconcileCfg.RosterTTL = cfg.Redis.RosterTTL
	}

	app.Reconciler = engine.NewReconciler(engine.ReconcilerDeps{
		Selector:  app.Selector,
		Game:      app.Game,
		Baselines: app.Baselines,
		Rosters:   app.Rosters,
		Locker:    app.Locker,
		Clock:     app.Clock,
		Metrics:   app.Metrics,
		Logger:    log,
	}, reconcileCfg)

	ranker := engine.NewRanker(app.Baselines, app.Metrics, log)
	recovery := engine.NewRecovery(ranker, app.Reconciler, log)

	app.Leaderboards = engine.NewLeaderboards(engine.LeaderboardsDeps{
		Selector:   app.Selector,
		Reconciler: app.Reconciler,
		Recovery:   recovery,
		Snapshots:  app.Snapshots,
		Clock:      app.Clock,
		Metrics:    app.Metrics,
		Logger:     log,
	}, engine.LeaderboardsConfig{
		Guilds:           guildMap(cfg),
		RecoveryAttempts: cfg.Reconcile.RecoveryAttempts,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПРОСЫ И КОМАНДЫ
	// ─────────────────────────────────────────────────────────────────────────
	app.LeaderboardQuery = query.NewGetLeaderboardHandler(app.Leaderboards)
	app.HistoryQuery = query.NewGetHistoryHandler(app.Leaderboards)
	app.PeriodsQuery = query.NewListPeriodsHandler(app.Leaderboards, app.Clock)
	app.CaptureCommand = command.NewCaptureStandingsHandler(app.Leaderboards, app.Snapshots, app.Clock, app.Metrics, log)

	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	if cfg.Database.URL == "" {
		a.Logger.Warn("database.url not set, using in-memory store")
		store := memory.NewStore()
		a.Baselines = store.Baselines()
		a.Settings = store.Settings()
		a.Snapshots = memory.NewSnapshotStore()
		return nil
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)
	a.Health.AddCheck("database", handlers.NewPingCheck(conn))

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.Logger.Info("migrations applied", "count", applied)
	}

	a.Baselines = postgres.NewBaselineRepository(conn)
	a.Settings = postgres.NewSettingsRepository(conn)
	a.Snapshots = postgres.NewSnapshotRepository(conn)
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	cfg := a.Config
	if cfg.Redis.Disabled {
		a.Logger.Warn("redis disabled, using in-process caches and locks")
		a.Rosters = memory.NewRosterCache(a.Clock)
		a.Locker = engine.NewLocalLocker()
		return nil
	}

	cache, err := redis.NewCache(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return err
	}
	a.Cache = cache
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("redis", handlers.NewPingCheck(cache))

	a.Rosters = redis.NewRosterCache(cache)
	a.Locker = redis.NewLocker(cache)
	a.Snapshots = redis.NewSnapshotCache(cache, a.Snapshots, cfg.Redis.SnapshotTTL, a.Logger)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Фоновые задачи
// ─────────────────────────────────────────────────────────────────────────────

// NewScheduler регистрирует задачи сверки и снятия итогов.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	cfg := a.Config

	capture, err := scheduler.ParseCronExpression(cfg.Scheduler.CaptureSchedule)
	if err != nil {
		return nil, fmt.Errorf("scheduler.capture_schedule: %w", err)
	}

	s := scheduler.New(scheduler.Config{
		Logger:            a.Logger,
		Clock:             a.Clock,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
	})
	s.OnJobComplete(func(r scheduler.JobResult) {
		a.Metrics.ObserveJob(r.JobName, r.Success, r.Duration)
	})

	reconcile := jobs.NewReconcileGuildsJob(a.Reconciler, a.Locker, a.Logger, jobs.ReconcileGuildsConfig{
		Guilds:  a.Guilds(),
		LockTTL: cfg.Reconcile.LockTTL,
	})
	if err := s.Register(reconcile, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)); err != nil {
		return nil, err
	}
	if err := s.Register(jobs.NewCaptureStandingsJob(a.CaptureCommand, a.Logger), capture); err != nil {
		return nil, err
	}

	for _, name := range cfg.Scheduler.DisabledJobs {
		if err := s.SetEnabled(name, false); err != nil {
			return nil, fmt.Errorf("scheduler.disabled_jobs: %w", err)
		}
	}
	return s, nil
}

// Guilds возвращает настроенные гильдии в порядке треков.
func (a *App) Guilds() []string {
	out := make([]string, 0, 2)
	for _, t := range a.Config.Tracks() {
		out = append(out, a.Config.GuildFor(t))
	}
	return out
}

// Close дожидается фоновых сверок и закрывает соединения.
func (a *App) Close() {
	if a.Reconciler != nil {
		a.Reconciler.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func guildMap(cfg *config.Config) map[superlative.Track]string {
	m := make(map[superlative.Track]string, 2)
	for _, t := range cfg.Tracks() {
		m[t] = cfg.GuildFor(t)
	}
	return m
}
