// Package main - точка входа бота соревнований гильдий.
//
// Процесс принимает slash-команды чата по HTTP (эндпоинт интеракций),
// отдаёт JSON API с таблицами лидеров и метрики Prometheus, а также
// запускает фоновые задачи: сверку базовых значений и снятие итогов.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guildhub/superlatives/config"
	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/bootstrap"
	"github.com/guildhub/superlatives/internal/infrastructure/external/discord"
	interactions "github.com/guildhub/superlatives/internal/interface/discord"
	"github.com/guildhub/superlatives/internal/interface/discord/presenter"
	httpserver "github.com/guildhub/superlatives/internal/interface/http"
	"github.com/guildhub/superlatives/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg)
	log.Info("starting superlatives bot",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Location.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩА, ИГРОВОЙ API, ДВИЖОК
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЧАТ: ОТВЕТЫ НА ИНТЕРАКЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	discordCfg := discord.DefaultClientConfig(cfg.Discord.AppID)
	if cfg.Discord.BaseURL != "" {
		discordCfg.BaseURL = cfg.Discord.BaseURL
	}
	discordCfg.Timeout = cfg.Discord.RequestTimeout
	discordCfg.MaxRetries = cfg.Discord.MaxRetries
	discordCfg.Logger = log
	chat := discord.NewClient(discordCfg)

	router := interactions.NewRouter(chat, app.LeaderboardQuery, app.HistoryQuery, app.PeriodsQuery, interactions.RouterConfig{
		Logger:    log,
		Clock:     app.Clock,
		Progress:  func(token string) engine.Progress { return chat.NewProgress(token) },
		Timeout:   cfg.Reconcile.JobTimeout,
		Presenter: presenter.Options{ColumnSize: cfg.Leaderboard.ChunkSize},
		Metrics:   app.Metrics,
	})
	defer router.Wait()

	var verifier httpserver.SignatureVerifier
	if cfg.Discord.PublicKey != "" {
		v, err := discord.NewVerifier(cfg.Discord.PublicKey)
		if err != nil {
			return fmt.Errorf("discord.public_key: %w", err)
		}
		verifier = v
	} else {
		log.Warn("discord.public_key not set, interactions endpoint will reject every request")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Addr = cfg.HTTP.Addr
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RateLimit = cfg.HTTP.RateLimit
	httpCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
	httpCfg.Version = cfg.App.Version

	deps := httpserver.Dependencies{
		Leaderboard:  app.LeaderboardQuery,
		History:      app.HistoryQuery,
		Periods:      app.PeriodsQuery,
		Interactions: router,
		Verifier:     verifier,
		Health:       app.Health,
		Metrics:      app.Metrics,
		Logger:       log,
	}
	if cfg.Observability.MetricsEnabled {
		deps.MetricsHandler = app.Metrics.Handler()
	}
	server := httpserver.NewServer(httpCfg, deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched, err := app.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to configure scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()
	log.Info("superlatives bot is running", "http_address", cfg.HTTP.Addr, "guilds", app.Guilds())

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}
