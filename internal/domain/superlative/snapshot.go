package superlative

import (
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - зафиксированная таблица трека за период.
// Используется для исторических запросов и не меняется при изменении базовых значений.
type Snapshot struct {
	PeriodID string
	Track    Track

	// Brackets - ступени на момент фиксации.
	Brackets []Bracket

	// Entries - строки, отсортированы по рангу.
	Entries []SnapshotEntry

	CapturedAt time.Time
}

// SnapshotEntry - строка снапшота.
type SnapshotEntry struct {
	UUID        string
	DisplayName string
	Value       int64
}

// NewSnapshot фиксирует отранжированную таблицу.
func NewSnapshot(period *Period, track Track, ranked []RankedMember, at time.Time) *Snapshot {
	entries := make([]SnapshotEntry, 0, len(ranked))
	for _, m := range ranked {
		entries = append(entries, SnapshotEntry{
			UUID:        m.UUID,
			DisplayName: m.DisplayName,
			Value:       m.RawValue,
		})
	}
	return &Snapshot{
		PeriodID:   period.ID,
		Track:      track,
		Brackets:   period.BracketsFor(track),
		Entries:    entries,
		CapturedAt: at,
	}
}

// IsEmpty - в снапшоте нет строк.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Entries) == 0
}

// Ranked восстанавливает строки таблицы в сохранённом порядке.
// Смещения ступеней в истории не показываются.
func (s *Snapshot) Ranked(metric MetricSpec) []RankedMember {
	out := make([]RankedMember, 0, len(s.Entries))
	for i, e := range s.Entries {
		score := shared.Score(e.Value)
		out = append(out, RankedMember{
			UUID:           e.UUID,
			DisplayName:    e.DisplayName,
			Value:          score.Ranked(),
			RawValue:       score.Raw(),
			FormattedValue: metric.FormatValue(score.Raw()),
			Rank:           shared.Rank(i + 1),
			Transition:     TransitionNone,
		})
	}
	return out
}
