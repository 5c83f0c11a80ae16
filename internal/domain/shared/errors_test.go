package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("store", "Rollover", ErrConcurrentModification, "rollover failed", cause)

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store.Rollover: rollover failed: connection reset", err.Error())
}

func TestUpstreamError_ClassifiesByStatus(t *testing.T) {
	limited := &UpstreamError{Service: "gameapi", Op: "GetGuild", Status: 429, Message: "slow down", RetryAfter: 3 * time.Second}
	failed := &UpstreamError{Service: "gameapi", Op: "GetGuild", Status: 500, Message: "oops"}

	assert.True(t, IsRateLimited(limited))
	assert.False(t, errors.Is(limited, ErrAPIFailure))
	assert.True(t, errors.Is(failed, ErrAPIFailure))
	assert.False(t, IsRateLimited(failed))

	wrapped := fmt.Errorf("reconcile: %w", limited)
	hint, ok := RetryAfterHint(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, hint)

	_, ok = RetryAfterHint(failed)
	assert.False(t, ok)
}

func TestIsInformational(t *testing.T) {
	assert.True(t, IsInformational(ErrNoActivePeriod))
	assert.True(t, IsInformational(NewDomainError("superlative", "Historical", ErrInvalidHistoricalDate, "bad month")))
	assert.False(t, IsInformational(ErrAPIFailure))
}

func TestScore_ClampsForRanking(t *testing.T) {
	assert.Equal(t, int64(0), Score(-12).Ranked())
	assert.Equal(t, int64(-12), Score(-12).Raw())
	assert.True(t, Score(-1).IsRegression())
	assert.Equal(t, int64(40), Score(40).Ranked())
}

func TestRank(t *testing.T) {
	assert.Equal(t, "🥇", Rank(1).Medal())
	assert.Equal(t, "", Rank(4).Medal())
	assert.True(t, Rank(3).IsTop(3))
	assert.False(t, Unranked.IsValid())
	assert.Equal(t, "#7", Rank(7).String())
}
