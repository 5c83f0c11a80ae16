package presenter

import (
	"errors"
	"fmt"
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/infrastructure/external/discord"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR PRESENTER
// Штатные состояния показываются спокойным сообщением, сбои - с пометкой.
// ══════════════════════════════════════════════════════════════════════════════

// defaultRetryHint - через сколько предлагать повтор, если API не сообщил.
const defaultRetryHint = time.Minute

// RenderError строит сообщение об ошибке запроса.
func RenderError(err error, now time.Time) discord.MessagePayload {
	embed := discord.Embed{Color: ColorError}

	switch {
	case errors.Is(err, shared.ErrNoActivePeriod):
		embed.Color = ColorInfo
		embed.Title = "No active competition"
		embed.Description = "There is no superlative running right now. Check back when the next period starts."
	case errors.Is(err, shared.ErrEmptyLeaderboard):
		embed.Color = ColorInfo
		embed.Title = "Nobody to rank yet"
		embed.Description = "This leaderboard has no members."
	case errors.Is(err, shared.ErrInvalidHistoricalDate):
		embed.Color = ColorInfo
		embed.Title = "Unknown period"
		embed.Description = "Use a period id or a month like `2024-05`.\n" + detail(err)
	case errors.Is(err, shared.ErrSnapshotUnavailable):
		embed.Color = ColorInfo
		embed.Title = "No archived standings"
		embed.Description = "Final standings were not recorded for that period."
	case shared.IsRateLimited(err):
		wait, ok := shared.RetryAfterHint(err)
		if !ok {
			wait = defaultRetryHint
		}
		embed.Title = "Rate limited"
		embed.Description = fmt.Sprintf("The game API is busy. Try again at %s.",
			timeutil.ChatTimestamp(now.Add(wait), timeutil.StyleShortTime))
	case errors.Is(err, shared.ErrMissingBaseline):
		embed.Title = "Still collecting data"
		embed.Description = fmt.Sprintf("Some members have not been sampled yet. Try again at %s.",
			timeutil.ChatTimestamp(now.Add(defaultRetryHint), timeutil.StyleShortTime))
	case shared.IsExternalService(err):
		embed.Title = "Game API error"
		embed.Description = detail(err)
	case errors.Is(err, shared.ErrConfig):
		embed.Title = "Configuration error"
		embed.Description = detail(err)
	default:
		embed.Title = "Something went wrong"
		embed.Description = detail(err)
	}

	return discord.MessagePayload{Embeds: []discord.Embed{embed}}
}

// detail возвращает сообщение DomainError без служебного префикса.
func detail(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
