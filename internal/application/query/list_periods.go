package query

import (
	"time"

	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST PERIODS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// PeriodStatus - положение периода относительно текущего момента.
type PeriodStatus string

const (
	PeriodPast     PeriodStatus = "past"
	PeriodActive   PeriodStatus = "active"
	PeriodUpcoming PeriodStatus = "upcoming"
)

// PeriodDTO - период в списке.
type PeriodDTO struct {
	ID       string                  `json:"id"`
	Title    string                  `json:"title"`
	Month    string                  `json:"month"`
	StartsAt time.Time               `json:"starts_at"`
	Metric   string                  `json:"metric"`
	Status   PeriodStatus            `json:"status"`
	Brackets map[string][]BracketDTO `json:"brackets"`
}

// ListPeriodsHandler перечисляет настроенные периоды.
type ListPeriodsHandler struct {
	leaderboards Leaderboards
	clock        timeutil.Clock
}

// NewListPeriodsHandler создаёт обработчик.
func NewListPeriodsHandler(leaderboards Leaderboards, clock timeutil.Clock) *ListPeriodsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &ListPeriodsHandler{leaderboards: leaderboards, clock: clock}
}

// Handle возвращает периоды по возрастанию начала.
// Активным считается последний начавшийся период.
func (h *ListPeriodsHandler) Handle() []PeriodDTO {
	now := h.clock.Now()
	periods := h.leaderboards.Periods()

	activeIdx := -1
	for i, p := range periods {
		if !p.IsUpcoming(now) {
			activeIdx = i
		}
	}

	out := make([]PeriodDTO, 0, len(periods))
	for i, p := range periods {
		status := PeriodPast
		switch {
		case i == activeIdx:
			status = PeriodActive
		case i > activeIdx:
			status = PeriodUpcoming
		}

		brackets := make(map[string][]BracketDTO, len(p.Brackets))
		for _, track := range superlative.Tracks() {
			if bs := p.BracketsFor(track); len(bs) > 0 {
				brackets[track.String()] = bracketDTOs(bs)
			}
		}

		out = append(out, PeriodDTO{
			ID:       p.ID,
			Title:    p.Title,
			Month:    timeutil.FormatMonth(p.Start),
			StartsAt: p.Start,
			Metric:   p.Metric.Label(),
			Status:   status,
			Brackets: brackets,
		})
	}
	return out
}
