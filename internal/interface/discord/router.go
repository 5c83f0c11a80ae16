// Package discord маршрутизирует slash-команды чата в запросы движка
// и отвечает через отложенные ответы на интеракции.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/application/query"
	api "github.com/guildhub/superlatives/internal/infrastructure/external/discord"
	"github.com/guildhub/superlatives/internal/interface/discord/presenter"
	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// КОМАНДЫ
// ══════════════════════════════════════════════════════════════════════════════

// Имя команды и подкоманды.
const (
	CommandSuperlatives = "superlatives"

	SubcommandLive    = "live"
	SubcommandHistory = "history"
	SubcommandPeriods = "periods"

	OptionTrack  = "track"
	OptionPeriod = "period"
)

// ══════════════════════════════════════════════════════════════════════════════
// ЗАВИСИМОСТИ
// ══════════════════════════════════════════════════════════════════════════════

// Responder редактирует отложенный ответ и дописывает продолжения.
type Responder interface {
	EditOriginal(ctx context.Context, token string, payload api.MessagePayload) error
	Followup(ctx context.Context, token string, payload api.MessagePayload) error
}

// Metrics считает интеракции.
type Metrics interface {
	IncInteraction(command string)
}

// RouterConfig - настройки маршрутизатора.
type RouterConfig struct {
	Logger *slog.Logger
	Clock  timeutil.Clock

	// Progress создаёт отчёт о ходе запроса для токена интеракции.
	// nil - статусы не показываются.
	Progress func(token string) engine.Progress

	// Timeout ограничивает фоновую обработку команды.
	Timeout time.Duration

	Presenter presenter.Options
	Metrics   Metrics
}

// Router обрабатывает интеракции.
type Router struct {
	responder Responder
	live      *query.GetLeaderboardHandler
	history   *query.GetHistoryHandler
	periods   *query.ListPeriodsHandler
	config    RouterConfig
	logger    *slog.Logger

	inflight sync.WaitGroup
}

// NewRouter создаёт маршрутизатор.
func NewRouter(
	responder Responder,
	live *query.GetLeaderboardHandler,
	history *query.GetHistoryHandler,
	periods *query.ListPeriodsHandler,
	config RouterConfig,
) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.Presenter.ColumnSize <= 0 {
		config.Presenter = presenter.DefaultOptions()
	}
	return &Router{
		responder: responder,
		live:      live,
		history:   history,
		periods:   periods,
		config:    config,
		logger:    config.Logger.With(logger.Component("interactions")),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// МАРШРУТИЗАЦИЯ
// ══════════════════════════════════════════════════════════════════════════════

// Handle возвращает синхронный ответ на интеракцию.
// Долгие команды подтверждаются отложенным ответом, а результат
// дописывается в фоне через Responder.
func (r *Router) Handle(ctx context.Context, in *api.Interaction) api.InteractionResponse {
	if in.Type == api.InteractionPing {
		return api.Pong()
	}
	if in.Type != api.InteractionApplicationCommand || in.CommandName() != CommandSuperlatives {
		return ephemeral("Unknown command.")
	}

	sub := in.Subcommand()
	if r.config.Metrics != nil {
		r.config.Metrics.IncInteraction(CommandSuperlatives + " " + sub)
	}

	log := r.logger.With("interaction_id", in.ID, "subcommand", sub)
	if caller := in.Caller(); caller != nil {
		log = log.With("user_id", caller.ID)
	}

	switch sub {
	case SubcommandPeriods:
		return api.Immediate(r.renderPeriods())

	case SubcommandLive, "":
		track := optionOr(in, OptionTrack, "primary")
		r.respondLater(ctx, in.Token, log, func(ctx context.Context, progress engine.Progress) (*query.LeaderboardResult, error) {
			return r.live.Handle(ctx, query.GetLeaderboardQuery{Track: track, Progress: progress})
		})
		return api.Deferred()

	case SubcommandHistory:
		track := optionOr(in, OptionTrack, "primary")
		ref, _ := in.StringOption(OptionPeriod)
		r.respondLater(ctx, in.Token, log, func(ctx context.Context, progress engine.Progress) (*query.LeaderboardResult, error) {
			return r.history.Handle(ctx, query.GetHistoryQuery{Track: track, Ref: ref, Progress: progress})
		})
		return api.Deferred()
	}

	return ephemeral("Unknown subcommand.")
}

// Wait дожидается завершения фоновых ответов.
func (r *Router) Wait() {
	r.inflight.Wait()
}

type leaderboardFunc func(ctx context.Context, progress engine.Progress) (*query.LeaderboardResult, error)

// respondLater выполняет запрос в фоне и редактирует отложенный ответ.
func (r *Router) respondLater(ctx context.Context, token string, log *slog.Logger, run leaderboardFunc) {
	detached := context.WithoutCancel(ctx)

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		ctx, cancel := context.WithTimeout(detached, r.config.Timeout)
		defer cancel()

		var progress engine.Progress = engine.NopProgress{}
		if r.config.Progress != nil {
			progress = r.config.Progress(token)
		}

		started := time.Now()
		result, err := run(ctx, progress)

		var payloads []api.MessagePayload
		if err != nil {
			if query.IsInformational(err) {
				log.Info("interaction answered with state", logger.Err(err))
			} else {
				log.Warn("interaction failed", logger.Err(err))
			}
			payloads = []api.MessagePayload{presenter.RenderError(err, r.config.Clock.Now())}
		} else {
			payloads = presenter.RenderLeaderboard(result.View, r.config.Presenter)
		}

		if err := r.responder.EditOriginal(ctx, token, payloads[0]); err != nil {
			log.Error("edit original response failed", logger.Err(err))
			return
		}
		for i, payload := range payloads[1:] {
			if err := r.responder.Followup(ctx, token, payload); err != nil {
				log.Error("followup message failed", logger.Err(err), slog.Int("part", i+2), slog.Int("parts", len(payloads)))
				return
			}
		}
		log.Debug("interaction completed", logger.Latency(time.Since(started)))
	}()
}

func (r *Router) renderPeriods() api.MessagePayload {
	periods := r.periods.Handle()
	if len(periods) == 0 {
		return api.MessagePayload{Content: "No competitions are configured."}
	}

	lines := make([]string, 0, len(periods))
	for _, p := range periods {
		marker := ""
		switch p.Status {
		case query.PeriodActive:
			marker = " **(active)**"
		case query.PeriodUpcoming:
			marker = " (upcoming)"
		}
		lines = append(lines, fmt.Sprintf("`%s` %s · %s · %s%s",
			p.ID, presenter.EscapeName(p.Title), p.Metric, timeutil.ChatTimestamp(p.StartsAt, "D"), marker))
	}

	return api.MessagePayload{Embeds: []api.Embed{{
		Title:       "Competition periods",
		Description: joinWithin(lines, api.MaxEmbedDescriptionLength),
		Color:       presenter.ColorInfo,
	}}}
}

// joinWithin склеивает строки в описание не длиннее limit.
// Непоместившийся хвост заменяется строкой с числом пропущенных.
// Перед каждой строкой резервируется место под такую пометку.
func joinWithin(lines []string, limit int) string {
	var sb strings.Builder
	for i, line := range lines {
		reserve := 0
		if rest := len(lines) - i - 1; rest > 0 {
			reserve = len(moreLine(rest)) + 1
		}
		if sb.Len()+len(line)+1+reserve > limit {
			sb.WriteString(moreLine(len(lines) - i))
			break
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func moreLine(n int) string {
	return fmt.Sprintf("…and %d more", n)
}

func optionOr(in *api.Interaction, name, fallback string) string {
	if v, ok := in.StringOption(name); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func ephemeral(text string) api.InteractionResponse {
	return api.Immediate(api.MessagePayload{Content: text, Flags: api.MessageFlagEphemeral})
}
