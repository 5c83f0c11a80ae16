// Package query contains read operations following CQRS pattern.
// Queries never modify baselines or snapshots. Each query is a self-contained
// use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Живая таблица трека по активному периоду.
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboards - то, что нужно запросам от движка.
type Leaderboards interface {
	Live(ctx context.Context, track superlative.Track, progress engine.Progress) (*engine.View, error)
	Historical(ctx context.Context, ref string, track superlative.Track, progress engine.Progress) (*engine.View, error)
	Periods() []*superlative.Period
}

// GetLeaderboardQuery содержит параметры запроса живой таблицы.
type GetLeaderboardQuery struct {
	// Track - трек ("primary" или "secondary").
	Track string

	// Progress получает промежуточные статусы. Может быть nil.
	Progress engine.Progress
}

// Validate проверяет трек.
func (q GetLeaderboardQuery) Validate() (superlative.Track, error) {
	return superlative.ParseTrack(q.Track)
}

// BracketDTO - ступень рейтинга.
type BracketDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

// LeaderboardEntryDTO - строка таблицы.
type LeaderboardEntryDTO struct {
	// Rank - позиция (начиная с 1).
	Rank int `json:"rank"`

	UUID        string `json:"uuid"`
	DisplayName string `json:"display_name"`

	// Value - счёт для сортировки, не меньше нуля.
	Value int64 `json:"value"`

	// RawValue - счёт как есть.
	RawValue int64 `json:"raw_value"`

	// Formatted - RawValue в формате метрики.
	Formatted string `json:"formatted"`

	// Transition - "up", "down" или "none".
	Transition string `json:"transition"`
}

// LeaderboardResult - результат запроса таблицы.
type LeaderboardResult struct {
	Kind        string                `json:"kind"`
	Track       string                `json:"track"`
	Guild       string                `json:"guild,omitempty"`
	PeriodID    string                `json:"period_id"`
	PeriodTitle string                `json:"period_title"`
	Metric      string                `json:"metric"`
	StartsAt    time.Time             `json:"starts_at"`
	Brackets    []BracketDTO          `json:"brackets"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	GeneratedAt time.Time             `json:"generated_at"`
	CapturedAt  *time.Time            `json:"captured_at,omitempty"`

	// View - исходное представление для рендеринга в чате.
	View *engine.View `json:"-"`
}

// GetLeaderboardHandler обрабатывает запросы живой таблицы.
type GetLeaderboardHandler struct {
	leaderboards Leaderboards
}

// NewGetLeaderboardHandler создаёт обработчик.
func NewGetLeaderboardHandler(leaderboards Leaderboards) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{leaderboards: leaderboards}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardResult, error) {
	track, err := q.Validate()
	if err != nil {
		return nil, err
	}

	view, err := h.leaderboards.Live(ctx, track, q.Progress)
	if err != nil {
		return nil, err
	}
	return NewLeaderboardResult(view), nil
}

// NewLeaderboardResult переводит представление движка в DTO.
func NewLeaderboardResult(view *engine.View) *LeaderboardResult {
	res := &LeaderboardResult{
		Kind:        string(view.Kind),
		Track:       view.Track.String(),
		Guild:       view.Guild,
		Brackets:    bracketDTOs(view.Brackets),
		Entries:     make([]LeaderboardEntryDTO, 0, len(view.Members)),
		GeneratedAt: view.GeneratedAt,
		View:        view,
	}
	if view.Period != nil {
		res.PeriodID = view.Period.ID
		res.PeriodTitle = view.Period.Title
		res.Metric = view.Period.Metric.Label()
		res.StartsAt = view.Period.Start
	}
	if !view.CapturedAt.IsZero() {
		at := view.CapturedAt
		res.CapturedAt = &at
	}

	for _, m := range view.Members {
		res.Entries = append(res.Entries, LeaderboardEntryDTO{
			Rank:        m.Rank.Int(),
			UUID:        m.UUID,
			DisplayName: m.DisplayName,
			Value:       m.Value,
			RawValue:    m.RawValue,
			Formatted:   m.FormattedValue,
			Transition:  string(m.Transition),
		})
	}
	return res
}

func bracketDTOs(brackets []superlative.Bracket) []BracketDTO {
	out := make([]BracketDTO, 0, len(brackets))
	for _, b := range brackets {
		out = append(out, BracketDTO{ID: b.ID, Name: b.Name, Threshold: b.Threshold})
	}
	return out
}

// IsInformational - ошибка означает штатное состояние, а не сбой.
func IsInformational(err error) bool {
	return shared.IsInformational(err)
}
