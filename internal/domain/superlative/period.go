// Package superlative содержит доменную модель ежемесячных соревнований гильдий:
// периоды, метрики, базовые значения, ранжирование и исторические снапшоты.
package superlative

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK
// ══════════════════════════════════════════════════════════════════════════════

// Track - трек соревнования. У каждой из двух гильдий свой трек и свои пороги.
type Track string

const (
	TrackPrimary   Track = "primary"
	TrackSecondary Track = "secondary"
)

// Tracks возвращает все треки в порядке отображения.
func Tracks() []Track {
	return []Track{TrackPrimary, TrackSecondary}
}

// IsValid проверяет, что трек известен.
func (t Track) IsValid() bool {
	return t == TrackPrimary || t == TrackSecondary
}

// String возвращает строковое представление.
func (t Track) String() string {
	return string(t)
}

// ParseTrack разбирает название трека без учёта регистра.
func ParseTrack(s string) (Track, error) {
	t := Track(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewDomainError("superlative", "ParseTrack", shared.ErrInvalidInput,
			fmt.Sprintf("unknown track %q", s))
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BRACKET
// ══════════════════════════════════════════════════════════════════════════════

// Bracket - ступень рейтинга. ID совпадает с внутриигровым тегом ранга участника.
type Bracket struct {
	ID        string
	Name      string
	Threshold int64
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// Period - один период соревнования. Неизменяем после загрузки конфигурации.
type Period struct {
	ID     string
	Title  string
	Start  time.Time
	Metric MetricSpec

	// Brackets - ступени по трекам, отсортированы по возрастанию порога.
	Brackets map[Track][]Bracket
}

// BracketsFor возвращает копию ступеней трека.
func (p *Period) BracketsFor(track Track) []Bracket {
	src := p.Brackets[track]
	out := make([]Bracket, len(src))
	copy(out, src)
	return out
}

// IsUpcoming - период ещё не начался.
func (p *Period) IsUpcoming(now time.Time) bool {
	return p.Start.After(now)
}

// StartsInMonthOf - период начинается в том же календарном месяце, что и t.
func (p *Period) StartsInMonthOf(t time.Time) bool {
	return timeutil.SameMonth(p.Start, t)
}

func (p *Period) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("period id is empty")
	}
	if p.Start.IsZero() {
		return fmt.Errorf("period %s: start is not set", p.ID)
	}
	if err := p.Metric.Validate(); err != nil {
		return fmt.Errorf("period %s: %w", p.ID, err)
	}
	for track, brackets := range p.Brackets {
		if !track.IsValid() {
			return fmt.Errorf("period %s: unknown track %q", p.ID, track)
		}
		seen := make(map[string]bool, len(brackets))
		for i, b := range brackets {
			if b.ID == "" {
				return fmt.Errorf("period %s/%s: bracket %d has no id", p.ID, track, i)
			}
			key := strings.ToLower(b.ID)
			if seen[key] {
				return fmt.Errorf("period %s/%s: duplicate bracket %q", p.ID, track, b.ID)
			}
			seen[key] = true
			if i > 0 && b.Threshold <= brackets[i-1].Threshold {
				return fmt.Errorf("period %s/%s: thresholds must strictly ascend (%q)", p.ID, track, b.ID)
			}
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry - упорядоченный набор периодов из конфигурации.
// Выбор активного периода - чистая функция от времени.
type Registry struct {
	byStartDesc []*Period
	byID        map[string]*Period
}

// NewRegistry проверяет периоды и строит реестр.
func NewRegistry(periods []Period) (*Registry, error) {
	r := &Registry{
		byStartDesc: make([]*Period, 0, len(periods)),
		byID:        make(map[string]*Period, len(periods)),
	}

	for i := range periods {
		p := periods[i]
		if err := p.validate(); err != nil {
			return nil, shared.WrapError("superlative", "NewRegistry", shared.ErrConfig, "invalid period", err)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, shared.NewDomainError("superlative", "NewRegistry", shared.ErrConfig,
				fmt.Sprintf("duplicate period id %q", p.ID))
		}
		r.byID[p.ID] = &p
		r.byStartDesc = append(r.byStartDesc, &p)
	}

	sort.SliceStable(r.byStartDesc, func(i, j int) bool {
		return r.byStartDesc[i].Start.After(r.byStartDesc[j].Start)
	})

	for i := 1; i < len(r.byStartDesc); i++ {
		if r.byStartDesc[i].Start.Equal(r.byStartDesc[i-1].Start) {
			return nil, shared.NewDomainError("superlative", "NewRegistry", shared.ErrConfig,
				fmt.Sprintf("periods %q and %q share a start time", r.byStartDesc[i-1].ID, r.byStartDesc[i].ID))
		}
	}

	return r, nil
}

// ActiveAt возвращает период с наибольшим началом, не превышающим now.
// Пропущенные периоды не воспроизводятся: важен только последний применимый.
// nil означает, что соревнований нет.
func (r *Registry) ActiveAt(now time.Time) *Period {
	for _, p := range r.byStartDesc {
		if !p.Start.After(now) {
			return p
		}
	}
	return nil
}

// Get ищет период по ID.
func (r *Registry) Get(id string) (*Period, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// StartingInMonth возвращает самый ранний период, начинающийся в месяце monthStart.
func (r *Registry) StartingInMonth(monthStart time.Time) *Period {
	for i := len(r.byStartDesc) - 1; i >= 0; i-- {
		if r.byStartDesc[i].StartsInMonthOf(monthStart) {
			return r.byStartDesc[i]
		}
	}
	return nil
}

// All возвращает периоды по возрастанию начала.
func (r *Registry) All() []*Period {
	out := make([]*Period, 0, len(r.byStartDesc))
	for i := len(r.byStartDesc) - 1; i >= 0; i-- {
		out = append(out, r.byStartDesc[i])
	}
	return out
}

// Len возвращает количество периодов.
func (r *Registry) Len() int {
	return len(r.byStartDesc)
}
