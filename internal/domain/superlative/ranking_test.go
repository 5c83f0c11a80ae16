package superlative

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

var abcBrackets = []Bracket{
	{ID: "A", Name: "Recruit", Threshold: 0},
	{ID: "B", Name: "Knight", Threshold: 100},
	{ID: "C", Name: "Champion", Threshold: 500},
}

func testPeriod() *Period {
	return &Period{
		ID:     "2026-10-xp",
		Title:  "October XP",
		Start:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Metric: MetricSpec{Kind: MetricGuildXP},
		Brackets: map[Track][]Bracket{
			TrackPrimary: abcBrackets,
		},
	}
}

func TestComputeTransition(t *testing.T) {
	tests := []struct {
		name  string
		tag   string
		value int64
		want  Transition
	}{
		{"B with 600 moves up", "B", 600, TransitionUp},
		{"C with 50 moves down", "C", 50, TransitionDown},
		{"A with 150 moves up", "A", 150, TransitionUp},
		{"B with 100 stays", "B", 100, TransitionNone},
		{"unknown tag never moves", "Owner", 10_000, TransitionNone},
		{"tag matching ignores case", "c", 50, TransitionDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTransition(abcBrackets, tt.tag, tt.value))
		})
	}
}

func TestBracketIndex_BelowLowestThreshold(t *testing.T) {
	brackets := []Bracket{{ID: "B", Threshold: 100}}
	assert.Equal(t, -1, BracketIndex(brackets, 99))
	assert.Equal(t, 0, BracketIndex(brackets, 100))
	assert.Equal(t, TransitionDown, ComputeTransition(brackets, "B", 10))
}

func TestRankMembers_OrdersDescendingWithUUIDTieBreak(t *testing.T) {
	members := []ScoredMember{
		{UUID: "c", DisplayName: "carol", RankTag: "A", Score: 40},
		{UUID: "b", DisplayName: "bob", RankTag: "A", Score: 90},
		{UUID: "a", DisplayName: "alice", RankTag: "A", Score: 40},
		{UUID: "d", DisplayName: "dave", RankTag: "B", Score: -5},
	}

	ranked := RankMembers(testPeriod(), TrackPrimary, members)
	require.Len(t, ranked, 4)

	var order []string
	for _, m := range ranked {
		order = append(order, m.UUID)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, order)

	for i, m := range ranked {
		assert.Equal(t, shared.Rank(i+1), m.Rank)
	}
}

func TestRankMembers_ClampsNegativeScores(t *testing.T) {
	ranked := RankMembers(testPeriod(), TrackPrimary, []ScoredMember{
		{UUID: "x", DisplayName: "x", RankTag: "B", Score: -30},
		{UUID: "y", DisplayName: "y", RankTag: "A", Score: 0},
	})

	want := []RankedMember{
		{UUID: "x", DisplayName: "x", Value: 0, RawValue: -30, FormattedValue: "-30", Rank: 1, Transition: TransitionDown},
		{UUID: "y", DisplayName: "y", Value: 0, RawValue: 0, FormattedValue: "0", Rank: 2, Transition: TransitionNone},
	}
	if diff := cmp.Diff(want, ranked); diff != "" {
		t.Errorf("RankMembers() mismatch (-want +got):\n%s", diff)
	}
}

func TestRankMembers_DoesNotMutateInput(t *testing.T) {
	members := []ScoredMember{
		{UUID: "a", Score: 1},
		{UUID: "b", Score: 2},
	}
	_ = RankMembers(testPeriod(), TrackPrimary, members)
	assert.Equal(t, "a", members[0].UUID)
}

func TestRankMembers_TrackWithoutBrackets(t *testing.T) {
	ranked := RankMembers(testPeriod(), TrackSecondary, []ScoredMember{
		{UUID: "a", RankTag: "A", Score: 1000},
	})
	require.Len(t, ranked, 1)
	assert.Equal(t, TransitionNone, ranked[0].Transition)
}

func TestMissingBaselineError(t *testing.T) {
	var err error = &MissingBaselineError{UUID: "abc"}
	assert.ErrorIs(t, err, shared.ErrMissingBaseline)
	assert.Contains(t, err.Error(), "abc")
}

func TestSnapshot_RankedPreservesOrder(t *testing.T) {
	p := testPeriod()
	ranked := RankMembers(p, TrackPrimary, []ScoredMember{
		{UUID: "a", DisplayName: "alice", RankTag: "A", Score: 1500},
		{UUID: "b", DisplayName: "bob", RankTag: "A", Score: 2500},
	})
	snap := NewSnapshot(p, TrackPrimary, ranked, p.Start.AddDate(0, 1, 0))

	restored := snap.Ranked(p.Metric)
	require.Len(t, restored, 2)
	assert.Equal(t, "b", restored[0].UUID)
	assert.Equal(t, "2,500", restored[0].FormattedValue)
	assert.Equal(t, TransitionNone, restored[0].Transition)
	assert.Equal(t, abcBrackets, snap.Brackets)
}
