package shared

import "fmt"

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position in a leaderboard.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// Medal returns a medal emoji for the podium.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}

// String renders "#n".
func (r Rank) String() string {
	return fmt.Sprintf("#%d", int(r))
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score is a period-relative statistic delta. A negative score means the
// upstream data regressed; it ranks as zero but is still displayed as-is.
type Score int64

// Ranked returns the value used for ordering.
func (s Score) Ranked() int64 {
	if s < 0 {
		return 0
	}
	return int64(s)
}

// Raw returns the unclamped value.
func (s Score) Raw() int64 {
	return int64(s)
}

// IsRegression reports whether the upstream value went backwards.
func (s Score) IsRegression() bool {
	return s < 0
}
