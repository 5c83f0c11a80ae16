package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/application/query"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	api "github.com/guildhub/superlatives/internal/infrastructure/external/discord"
	"github.com/guildhub/superlatives/pkg/logger"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

type recordingResponder struct {
	mu        sync.Mutex
	payloads  map[string][]api.MessagePayload
	followups map[string][]api.MessagePayload
}

func (r *recordingResponder) EditOriginal(_ context.Context, token string, p api.MessagePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payloads == nil {
		r.payloads = map[string][]api.MessagePayload{}
	}
	r.payloads[token] = append(r.payloads[token], p)
	return nil
}

func (r *recordingResponder) Followup(_ context.Context, token string, p api.MessagePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.followups == nil {
		r.followups = map[string][]api.MessagePayload{}
	}
	r.followups[token] = append(r.followups[token], p)
	return nil
}

var octPeriod = &superlative.Period{
	ID: "oct", Title: "October Wars", Start: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	Metric: superlative.MetricSpec{Kind: superlative.MetricWars},
}

type stubBoards struct {
	liveErr error
	members []superlative.RankedMember
	periods []*superlative.Period
}

func (s stubBoards) Live(_ context.Context, track superlative.Track, p engine.Progress) (*engine.View, error) {
	_ = p.Update(context.Background(), engine.StatusFetchingGuild)
	if s.liveErr != nil {
		return nil, s.liveErr
	}
	members := s.members
	if members == nil {
		members = []superlative.RankedMember{{UUID: "u1", DisplayName: "a_b", Rank: 1, FormattedValue: "3"}}
	}
	return &engine.View{Kind: engine.ViewLive, Track: track, Guild: "Sky Wardens", Period: octPeriod, Members: members}, nil
}

func (s stubBoards) Historical(_ context.Context, ref string, _ superlative.Track, _ engine.Progress) (*engine.View, error) {
	return nil, shared.NewDomainError("superlative", "ResolvePeriod", shared.ErrInvalidHistoricalDate, ref+" is unknown")
}

func (s stubBoards) Periods() []*superlative.Period {
	if s.periods != nil {
		return s.periods
	}
	return []*superlative.Period{octPeriod}
}

func newTestRouter(boards stubBoards, responder Responder) *Router {
	clock := timeutil.FixedClock{At: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	return NewRouter(responder,
		query.NewGetLeaderboardHandler(boards),
		query.NewGetHistoryHandler(boards),
		query.NewListPeriodsHandler(boards, clock),
		RouterConfig{
			Logger:   logger.Discard(),
			Clock:    clock,
			Progress: func(string) engine.Progress { return engine.NopProgress{} },
		},
	)
}

func commandInteraction(t *testing.T, sub string, opts map[string]string) *api.Interaction {
	t.Helper()
	var inner []api.CommandOption
	for k, v := range opts {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		inner = append(inner, api.CommandOption{Name: k, Type: 3, Value: raw})
	}
	return &api.Interaction{
		ID:    "i1",
		Type:  api.InteractionApplicationCommand,
		Token: "tok-" + sub,
		Data: &api.CommandData{
			Name:    CommandSuperlatives,
			Options: []api.CommandOption{{Name: sub, Type: 1, Options: inner}},
		},
	}
}

func TestRouter_Ping(t *testing.T) {
	r := newTestRouter(stubBoards{}, &recordingResponder{})
	resp := r.Handle(context.Background(), &api.Interaction{Type: api.InteractionPing})
	assert.Equal(t, api.ResponsePong, resp.Type)
}

func TestRouter_LiveIsDeferredThenEdited(t *testing.T) {
	responder := &recordingResponder{}
	r := newTestRouter(stubBoards{}, responder)

	ctx, cancel := context.WithCancel(context.Background())
	resp := r.Handle(ctx, commandInteraction(t, SubcommandLive, map[string]string{OptionTrack: "primary"}))
	cancel()
	r.Wait()

	assert.Equal(t, api.ResponseDeferredChannelMessageWithSource, resp.Type)
	require.Len(t, responder.payloads["tok-live"], 1)
	embed := responder.payloads["tok-live"][0].Embeds[0]
	assert.Contains(t, embed.Title, "October Wars")
	assert.Contains(t, embed.Fields[0].Value, `a\_b`)
}

func TestRouter_ErrorsAreRendered(t *testing.T) {
	responder := &recordingResponder{}
	r := newTestRouter(stubBoards{}, responder)

	r.Handle(context.Background(), commandInteraction(t, SubcommandHistory, map[string]string{OptionPeriod: "1999-01"}))
	r.Wait()

	require.Len(t, responder.payloads["tok-history"], 1)
	embed := responder.payloads["tok-history"][0].Embeds[0]
	assert.Equal(t, "Unknown period", embed.Title)
	assert.Contains(t, embed.Description, "1999-01 is unknown")
}

func TestRouter_PeriodsAnswersImmediately(t *testing.T) {
	r := newTestRouter(stubBoards{}, &recordingResponder{})

	resp := r.Handle(context.Background(), commandInteraction(t, SubcommandPeriods, nil))
	require.Equal(t, api.ResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Contains(t, resp.Data.Embeds[0].Description, "`oct` October Wars")
	assert.Contains(t, resp.Data.Embeds[0].Description, "(active)")
}

func TestRouter_LargeLeaderboardSpillsIntoFollowups(t *testing.T) {
	members := make([]superlative.RankedMember, 150)
	for i := range members {
		members[i] = superlative.RankedMember{
			UUID:           fmt.Sprintf("u%03d", i),
			DisplayName:    fmt.Sprintf("Some_Player_%04d", i),
			Rank:           shared.Rank(i + 1),
			FormattedValue: "1,234,567",
			Transition:     superlative.TransitionUp,
		}
	}
	responder := &recordingResponder{}
	r := newTestRouter(stubBoards{members: members}, responder)

	r.Handle(context.Background(), commandInteraction(t, SubcommandLive, nil))
	r.Wait()

	require.Len(t, responder.payloads["tok-live"], 1)
	require.NotEmpty(t, responder.followups["tok-live"])

	all := append([]api.MessagePayload{responder.payloads["tok-live"][0]}, responder.followups["tok-live"]...)
	fields := 0
	for _, msg := range all {
		assert.LessOrEqual(t, msg.EmbedLength(), api.MaxEmbedTotalLength)
		for _, e := range msg.Embeds {
			fields += len(e.Fields)
		}
	}
	assert.Equal(t, 8, fields)
}

func TestRouter_PeriodsDescriptionFitsLimit(t *testing.T) {
	periods := make([]*superlative.Period, 200)
	for i := range periods {
		periods[i] = &superlative.Period{
			ID:     fmt.Sprintf("season-%03d-long-identifier", i),
			Title:  fmt.Sprintf("Grand_Season_Number_%03d_of_the_Endless_Guild_Wars", i),
			Start:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0),
			Metric: superlative.MetricSpec{Kind: superlative.MetricWars},
		}
	}
	r := newTestRouter(stubBoards{periods: periods}, &recordingResponder{})

	resp := r.Handle(context.Background(), commandInteraction(t, SubcommandPeriods, nil))
	require.NotNil(t, resp.Data)
	desc := resp.Data.Embeds[0].Description

	assert.LessOrEqual(t, len(desc), api.MaxEmbedDescriptionLength)
	lines := strings.Split(desc, "\n")
	shown := len(lines) - 1
	assert.Equal(t, fmt.Sprintf("…and %d more", len(periods)-shown), lines[len(lines)-1])
	assert.Contains(t, lines[0], "season-000-long-identifier")
}

func TestJoinWithin(t *testing.T) {
	lines := []string{"aaaa", "bbbb", "cccc"}
	assert.Equal(t, "aaaa\nbbbb\ncccc", joinWithin(lines, 100))
	assert.Equal(t, "aaaa\n…and 2 more", joinWithin(lines, 20))
	assert.LessOrEqual(t, len(joinWithin(lines, 20)), 20)
}

func TestRouter_UnknownCommand(t *testing.T) {
	r := newTestRouter(stubBoards{}, &recordingResponder{})

	resp := r.Handle(context.Background(), &api.Interaction{
		Type: api.InteractionApplicationCommand,
		Data: &api.CommandData{Name: "other"},
	})
	require.NotNil(t, resp.Data)
	assert.Equal(t, api.MessageFlagEphemeral, resp.Data.Flags)
}
