package superlative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func samplePeriods() []Period {
	return []Period{
		{ID: "nov", Title: "November", Start: month(2026, time.November), Metric: MetricSpec{Kind: MetricWars}},
		{ID: "sep", Title: "September", Start: month(2026, time.September), Metric: MetricSpec{Kind: MetricGuildXP}},
		{ID: "oct", Title: "October", Start: month(2026, time.October), Metric: MetricSpec{Kind: MetricPlaytime}},
	}
}

func TestRegistry_ActiveAt(t *testing.T) {
	r, err := NewRegistry(samplePeriods())
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before any period", month(2026, time.August), ""},
		{"exactly at start", month(2026, time.September), "sep"},
		{"mid october", month(2026, time.October).Add(15 * 24 * time.Hour), "oct"},
		{"skipped boundaries pick latest", month(2027, time.March), "nov"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ActiveAt(tt.now)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestRegistry_AllAscending(t *testing.T) {
	r, err := NewRegistry(samplePeriods())
	require.NoError(t, err)

	var ids []string
	for _, p := range r.All() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"sep", "oct", "nov"}, ids)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_LookupByIDAndMonth(t *testing.T) {
	r, err := NewRegistry(samplePeriods())
	require.NoError(t, err)

	p, ok := r.Get("oct")
	require.True(t, ok)
	assert.Equal(t, "October", p.Title)

	_, ok = r.Get("dec")
	assert.False(t, ok)

	assert.Equal(t, "nov", r.StartingInMonth(month(2026, time.November).Add(48*time.Hour)).ID)
	assert.Nil(t, r.StartingInMonth(month(2026, time.December)))
}

func TestNewRegistry_RejectsInvalidPeriods(t *testing.T) {
	tests := []struct {
		name    string
		periods []Period
	}{
		{
			name: "duplicate id",
			periods: []Period{
				{ID: "a", Start: month(2026, 1), Metric: MetricSpec{Kind: MetricWars}},
				{ID: "a", Start: month(2026, 2), Metric: MetricSpec{Kind: MetricWars}},
			},
		},
		{
			name: "shared start",
			periods: []Period{
				{ID: "a", Start: month(2026, 1), Metric: MetricSpec{Kind: MetricWars}},
				{ID: "b", Start: month(2026, 1), Metric: MetricSpec{Kind: MetricWars}},
			},
		},
		{
			name: "unknown metric",
			periods: []Period{
				{ID: "a", Start: month(2026, 1), Metric: MetricSpec{Kind: "karma"}},
			},
		},
		{
			name: "descending thresholds",
			periods: []Period{{
				ID: "a", Start: month(2026, 1), Metric: MetricSpec{Kind: MetricWars},
				Brackets: map[Track][]Bracket{
					TrackPrimary: {{ID: "X", Threshold: 10}, {ID: "Y", Threshold: 5}},
				},
			}},
		},
		{
			name: "param on plain metric",
			periods: []Period{
				{ID: "a", Start: month(2026, 1), Metric: MetricSpec{Kind: MetricWars, Param: "x"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.periods)
			assert.ErrorIs(t, err, shared.ErrConfig)
		})
	}
}

func TestParseTrack(t *testing.T) {
	tr, err := ParseTrack(" Secondary ")
	require.NoError(t, err)
	assert.Equal(t, TrackSecondary, tr)

	_, err = ParseTrack("tertiary")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
