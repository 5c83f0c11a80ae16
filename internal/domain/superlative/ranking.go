package superlative

import (
	"sort"
	"strings"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION
// ══════════════════════════════════════════════════════════════════════════════

// Transition - куда сдвинулся бы участник, если бы ступень определялась счётом.
type Transition string

const (
	TransitionUp   Transition = "up"
	TransitionDown Transition = "down"
	TransitionNone Transition = "none"
)

// Arrow возвращает стрелку для таблицы.
func (t Transition) Arrow() string {
	switch t {
	case TransitionUp:
		return "▲"
	case TransitionDown:
		return "▼"
	default:
		return ""
	}
}

// BracketIndex возвращает индекс самой высокой ступени, порог которой не превышает value.
// -1 означает, что значение ниже всех порогов.
func BracketIndex(brackets []Bracket, value int64) int {
	idx := -1
	for i, b := range brackets {
		if b.Threshold <= value {
			idx = i
		}
	}
	return idx
}

// TagIndex возвращает индекс ступени с ID, равным тегу ранга, или -1.
func TagIndex(brackets []Bracket, tag string) int {
	for i, b := range brackets {
		if strings.EqualFold(b.ID, tag) {
			return i
		}
	}
	return -1
}

// ComputeTransition сравнивает ступень по счёту со ступенью по тегу.
// Неизвестный тег (мастер гильдии, стафф) всегда даёт TransitionNone.
func ComputeTransition(brackets []Bracket, tag string, value int64) Transition {
	current := TagIndex(brackets, tag)
	if current < 0 {
		return TransitionNone
	}
	implied := BracketIndex(brackets, value)
	switch {
	case implied > current:
		return TransitionUp
	case implied < current:
		return TransitionDown
	default:
		return TransitionNone
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKED MEMBER
// ══════════════════════════════════════════════════════════════════════════════

// ScoredMember - участник с посчитанным счётом, вход для ранжирования.
type ScoredMember struct {
	UUID        string
	DisplayName string
	RankTag     string
	Score       shared.Score
}

// RankedMember - строка таблицы лидеров. Не сохраняется.
type RankedMember struct {
	UUID        string
	DisplayName string

	// Value - счёт для сортировки, не меньше нуля.
	Value int64

	// RawValue - счёт как есть, может быть отрицательным.
	RawValue int64

	// FormattedValue - RawValue в формате метрики периода.
	FormattedValue string

	Rank       shared.Rank
	Transition Transition
}

// RankMembers сортирует участников по убыванию счёта и присваивает ранги 1..N.
// При равном счёте порядок определяется UUID по возрастанию.
func RankMembers(period *Period, track Track, members []ScoredMember) []RankedMember {
	sorted := make([]ScoredMember, len(members))
	copy(sorted, members)

	sort.SliceStable(sorted, func(i, j int) bool {
		vi, vj := sorted[i].Score.Ranked(), sorted[j].Score.Ranked()
		if vi != vj {
			return vi > vj
		}
		return sorted[i].UUID < sorted[j].UUID
	})

	brackets := period.BracketsFor(track)
	out := make([]RankedMember, 0, len(sorted))
	for i, m := range sorted {
		value := m.Score.Ranked()
		out = append(out, RankedMember{
			UUID:           m.UUID,
			DisplayName:    m.DisplayName,
			Value:          value,
			RawValue:       m.Score.Raw(),
			FormattedValue: period.Metric.FormatValue(m.Score.Raw()),
			Rank:           shared.Rank(i + 1),
			Transition:     ComputeTransition(brackets, m.RankTag, value),
		})
	}
	return out
}
