package superlative

import (
	"fmt"
	"math"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRIC KIND
// ══════════════════════════════════════════════════════════════════════════════

// MetricKind - статистика, по которой соревнуются в периоде.
type MetricKind string

const (
	MetricNone       MetricKind = "none"
	MetricGuildXP    MetricKind = "guild_xp"
	MetricPlaytime   MetricKind = "playtime"
	MetricTotalLevel MetricKind = "total_level"
	MetricMobsKilled MetricKind = "mobs_killed"
	MetricChests     MetricKind = "chests_found"
	MetricWars       MetricKind = "wars"
	MetricQuests     MetricKind = "quests_completed"
	MetricDungeons   MetricKind = "dungeons"
	MetricRaids      MetricKind = "raids"
)

var metricLabels = map[MetricKind]string{
	MetricNone:       "No competition",
	MetricGuildXP:    "Guild XP contributed",
	MetricPlaytime:   "Hours played",
	MetricTotalLevel: "Total levels gained",
	MetricMobsKilled: "Mobs killed",
	MetricChests:     "Chests found",
	MetricWars:       "Wars fought",
	MetricQuests:     "Quests completed",
	MetricDungeons:   "Dungeons completed",
	MetricRaids:      "Raids completed",
}

// IsValid проверяет, что вид метрики известен.
func (k MetricKind) IsValid() bool {
	_, ok := metricLabels[k]
	return ok
}

// ══════════════════════════════════════════════════════════════════════════════
// METRIC SPEC
// ══════════════════════════════════════════════════════════════════════════════

// MetricSpec - метрика периода. Param уточняет метрику: имя подземелья или рейда.
// Пустой Param у подземелий и рейдов означает сумму по всем.
type MetricSpec struct {
	Kind  MetricKind
	Param string
}

// Validate проверяет метрику.
func (m MetricSpec) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("unknown metric %q", m.Kind)
	}
	if m.Param != "" && m.Kind != MetricDungeons && m.Kind != MetricRaids {
		return fmt.Errorf("metric %q does not take a parameter", m.Kind)
	}
	return nil
}

// NeedsPlayerStats - метрику нельзя посчитать по одному составу гильдии,
// нужен отдельный запрос статистики игрока.
func (m MetricSpec) NeedsPlayerStats() bool {
	return m.Kind != MetricGuildXP && m.Kind != MetricNone
}

// Label возвращает подпись метрики для заголовка таблицы.
func (m MetricSpec) Label() string {
	label := metricLabels[m.Kind]
	if m.Param != "" {
		return fmt.Sprintf("%s: %s", label, m.Param)
	}
	return label
}

// String возвращает "kind" или "kind:param".
func (m MetricSpec) String() string {
	if m.Param == "" {
		return string(m.Kind)
	}
	return string(m.Kind) + ":" + m.Param
}

// ParseMetricSpec разбирает запись вида "dungeons:Timelost Sanctum".
func ParseMetricSpec(s string) (MetricSpec, error) {
	kind, param, _ := strings.Cut(strings.TrimSpace(s), ":")
	spec := MetricSpec{
		Kind:  MetricKind(strings.ToLower(strings.TrimSpace(kind))),
		Param: strings.TrimSpace(param),
	}
	if err := spec.Validate(); err != nil {
		return MetricSpec{}, err
	}
	return spec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER STATS
// ══════════════════════════════════════════════════════════════════════════════

// PlayerStats - нужная метрикам часть статистики игрока из игрового API.
type PlayerStats struct {
	UUID          string
	PlaytimeHours float64
	TotalLevel    int64
	MobsKilled    int64
	ChestsFound   int64
	Wars          int64
	Quests        int64
	DungeonsTotal int64
	Dungeons      map[string]int64
	RaidsTotal    int64
	Raids         map[string]int64
}

// Sample вычисляет текущее значение метрики для участника.
// Для guild_xp достаточно записи из состава, stats может быть nil.
// Время игры хранится в минутах, чтобы остаться целым числом.
func Sample(spec MetricSpec, member RosterEntry, stats *PlayerStats) (int64, error) {
	switch spec.Kind {
	case MetricNone:
		return 0, nil
	case MetricGuildXP:
		return member.Contributed, nil
	}

	if stats == nil {
		return 0, fmt.Errorf("metric %s needs player stats for %s", spec, member.UUID)
	}

	switch spec.Kind {
	case MetricPlaytime:
		return int64(math.Round(stats.PlaytimeHours * 60)), nil
	case MetricTotalLevel:
		return stats.TotalLevel, nil
	case MetricMobsKilled:
		return stats.MobsKilled, nil
	case MetricChests:
		return stats.ChestsFound, nil
	case MetricWars:
		return stats.Wars, nil
	case MetricQuests:
		return stats.Quests, nil
	case MetricDungeons:
		return namedOrTotal(stats.Dungeons, stats.DungeonsTotal, spec.Param), nil
	case MetricRaids:
		return namedOrTotal(stats.Raids, stats.RaidsTotal, spec.Param), nil
	}
	return 0, fmt.Errorf("unknown metric %q", spec.Kind)
}

// namedOrTotal ищет счётчик по имени без учёта регистра.
// Отсутствие записи означает, что игрок там ещё не был.
func namedOrTotal(counts map[string]int64, total int64, name string) int64 {
	if name == "" {
		return total
	}
	for k, v := range counts {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return 0
}
