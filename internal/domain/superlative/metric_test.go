package superlative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	member := RosterEntry{UUID: "u1", Username: "Steve", Contributed: 12_345}
	stats := &PlayerStats{
		PlaytimeHours: 10.25,
		Wars:          7,
		DungeonsTotal: 30,
		Dungeons:      map[string]int64{"Timelost Sanctum": 4},
		RaidsTotal:    3,
	}

	tests := []struct {
		spec MetricSpec
		want int64
	}{
		{MetricSpec{Kind: MetricGuildXP}, 12_345},
		{MetricSpec{Kind: MetricPlaytime}, 615},
		{MetricSpec{Kind: MetricWars}, 7},
		{MetricSpec{Kind: MetricDungeons}, 30},
		{MetricSpec{Kind: MetricDungeons, Param: "timelost sanctum"}, 4},
		{MetricSpec{Kind: MetricDungeons, Param: "Never Visited"}, 0},
		{MetricSpec{Kind: MetricRaids}, 3},
		{MetricSpec{Kind: MetricNone}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.spec.String(), func(t *testing.T) {
			got, err := Sample(tt.spec, member, stats)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSample_RequiresStats(t *testing.T) {
	_, err := Sample(MetricSpec{Kind: MetricWars}, RosterEntry{UUID: "u1"}, nil)
	assert.Error(t, err)

	got, err := Sample(MetricSpec{Kind: MetricGuildXP}, RosterEntry{UUID: "u1", Contributed: 9}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)
}

func TestParseMetricSpec(t *testing.T) {
	spec, err := ParseMetricSpec("Dungeons: Timelost Sanctum")
	require.NoError(t, err)
	assert.Equal(t, MetricSpec{Kind: MetricDungeons, Param: "Timelost Sanctum"}, spec)
	assert.True(t, spec.NeedsPlayerStats())
	assert.Equal(t, "Dungeons completed: Timelost Sanctum", spec.Label())

	_, err = ParseMetricSpec("karma")
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1,234,567", MetricSpec{Kind: MetricGuildXP}.FormatValue(1_234_567))
	assert.Equal(t, "10.5 h", MetricSpec{Kind: MetricPlaytime}.FormatValue(630))
}

func TestBaselineRow_FirstSeenStartsAtZero(t *testing.T) {
	at := time.Date(2026, 10, 3, 12, 0, 0, 0, time.UTC)
	row := NewBaselineRow("u1", 500, at)
	assert.Equal(t, int64(0), row.Score().Raw())

	row.Observe(650, at.Add(time.Hour))
	assert.Equal(t, int64(150), row.Score().Ranked())
	assert.Equal(t, int64(500), row.BaselineValue)
}

func TestNormalizeUUID(t *testing.T) {
	got, err := NormalizeUUID("069A79F444E94726A5BEFCA90E38AAF5")
	require.NoError(t, err)
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", got)

	_, err = NormalizeUUID("not-a-uuid")
	assert.Error(t, err)
}
