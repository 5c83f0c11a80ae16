package gameapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

const guildJSON = `{
  "uuid": "9e1c5a5e-3b6b-4b1f-a7d6-1f1f0f0c0e0a",
  "name": "Aequitas",
  "prefix": "Aeq",
  "level": 92,
  "members": {
    "total": 3,
    "owner": {
      "069a79f444e94726a5befca90e38aaf5": {"username": "Notch", "online": false, "contributed": 900, "joined": "2021-01-02T03:04:05Z"}
    },
    "recruit": {
      "61699b2e-d327-4a01-9f1e-0ea8c3f06bc6": {"username": "dinnerbone_", "online": true, "contributed": 10},
      "2b1f0e8c-5a4b-4c3d-9e2f-1a0b9c8d7e6f": {"username": "jeb", "online": true, "contributed": 250}
    }
  }
}`

const playerJSON = `{
  "uuid": "069a79f4-44e9-4726-a5be-fca90e38aaf5",
  "username": "Notch",
  "playtime": 321.5,
  "globalData": {
    "wars": 41,
    "totalLevel": 1204,
    "killedMobs": 88000,
    "chestsFound": 3100,
    "completedQuests": 150,
    "dungeons": {"total": 72, "list": {"Timelost Sanctum": 9}},
    "raids": {"total": 12, "list": {"The Canyon Colossus": 5}}
  }
}`

func testClient(t *testing.T, srv *httptest.Server, mutate func(*ClientConfig)) *Client {
	t.Helper()
	cfg := DefaultClientConfig(srv.URL, "secret")
	cfg.RateLimit = 1000
	cfg.RateLimitBurst = 100
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestGuildDTO_Parsing(t *testing.T) {
	var dto GuildDTO
	require.NoError(t, json.Unmarshal([]byte(guildJSON), &dto))

	assert.Equal(t, "Aequitas", dto.Name)
	assert.Equal(t, 3, dto.Members.Total)
	assert.Len(t, dto.Members.ByRank, 2)
	assert.Len(t, dto.Members.ByRank["recruit"], 2)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(DefaultClientConfig("http://localhost", ""))
	assert.ErrorIs(t, err, shared.ErrConfig)
}

func TestGetGuildRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guild/Aequitas", r.URL.Path)
		assert.Equal(t, "uuid", r.URL.Query().Get("identifier"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(guildJSON))
	}))
	defer srv.Close()

	roster, err := testClient(t, srv, nil).GetGuildRoster(context.Background(), "Aequitas")
	require.NoError(t, err)

	assert.Equal(t, "Aeq", roster.Prefix)
	require.Len(t, roster.Members, 3)

	owner := roster.Members[0]
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", owner.UUID)
	assert.Equal(t, "owner", owner.RankTag)
	assert.Equal(t, int64(900), owner.Contributed)
	assert.Equal(t, 2021, owner.JoinedAt.Year())

	// recruits are sorted by uuid
	assert.Equal(t, "jeb", roster.Members[1].Username)
	assert.Equal(t, "dinnerbone_", roster.Members[2].Username)
}

func TestGetPlayerStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/player/069a79f4-44e9-4726-a5be-fca90e38aaf5", r.URL.Path)
		_, _ = w.Write([]byte(playerJSON))
	}))
	defer srv.Close()

	stats, err := testClient(t, srv, nil).GetPlayerStats(context.Background(), "069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)

	assert.Equal(t, 321.5, stats.PlaytimeHours)
	assert.Equal(t, int64(41), stats.Wars)
	assert.Equal(t, int64(72), stats.DungeonsTotal)
	assert.Equal(t, int64(9), stats.Dungeons["Timelost Sanctum"])
	assert.Equal(t, int64(5), stats.Raids["The Canyon Colossus"])
}

func TestRateLimit_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(playerJSON))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, nil).GetPlayerStats(context.Background(), "069a79f444e94726a5befca90e38aaf5")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimit_BoundedAndCarriesHint(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv, func(cfg *ClientConfig) { cfg.MaxRetries = 2 })
	_, err := c.GetGuildRoster(context.Background(), "Aequitas")

	require.Error(t, err)
	assert.True(t, shared.IsRateLimited(err))
	hint, ok := shared.RetryAfterHint(err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, hint)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAPIFailure_NotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"Error": "Guild not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, nil).GetGuildRoster(context.Background(), "Nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAPIFailure)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Contains(t, err.Error(), "Guild not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMalformedJSON_IsAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"members": [`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, nil).GetGuildRoster(context.Background(), "Aequitas")
	assert.ErrorIs(t, err, shared.ErrAPIFailure)
}

func TestBreaker_OpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv, func(cfg *ClientConfig) { cfg.BreakerThreshold = 2 })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetGuildRoster(ctx, "Aequitas")
		require.Error(t, err)
	}
	assert.False(t, c.IsHealthy())

	_, err := c.GetGuildRoster(ctx, "Aequitas")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 3*time.Second, parseRetryAfter("3", now))
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter("1.5", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}
