package query

import (
	"context"
	"strings"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// Таблица прошедшего периода по ID периода или месяцу YYYY-MM.
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryQuery содержит параметры исторического запроса.
type GetHistoryQuery struct {
	Track string

	// Ref - ID периода или месяц в формате YYYY-MM.
	Ref string

	Progress engine.Progress
}

// GetHistoryHandler обрабатывает исторические запросы.
type GetHistoryHandler struct {
	leaderboards Leaderboards
}

// NewGetHistoryHandler создаёт обработчик.
func NewGetHistoryHandler(leaderboards Leaderboards) *GetHistoryHandler {
	return &GetHistoryHandler{leaderboards: leaderboards}
}

// Handle выполняет запрос.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) (*LeaderboardResult, error) {
	track, err := GetLeaderboardQuery{Track: q.Track}.Validate()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Ref) == "" {
		return nil, shared.NewDomainError("query", "GetHistory", shared.ErrInvalidHistoricalDate,
			"a period id or YYYY-MM month is required")
	}

	view, err := h.leaderboards.Historical(ctx, q.Ref, track, q.Progress)
	if err != nil {
		return nil, err
	}
	return NewLeaderboardResult(view), nil
}
