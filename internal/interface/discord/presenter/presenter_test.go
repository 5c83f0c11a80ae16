package presenter

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/internal/infrastructure/external/discord"
)

func rankedN(n int) []superlative.RankedMember {
	out := make([]superlative.RankedMember, n)
	for i := range out {
		out[i] = superlative.RankedMember{
			UUID:           fmt.Sprintf("u%03d", i),
			DisplayName:    fmt.Sprintf("player_%d", i),
			Value:          int64(n - i),
			FormattedValue: fmt.Sprint(n - i),
			Rank:           shared.Rank(i + 1),
		}
	}
	return out
}

func TestPaginate(t *testing.T) {
	pages := Paginate(rankedN(50), DefaultColumnSize)

	sizes := make([]int, 0, len(pages))
	for _, p := range pages {
		sizes = append(sizes, len(p))
	}
	if diff := cmp.Diff([]int{21, 21, 8}, sizes); diff != "" {
		t.Errorf("column sizes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 22, pages[1][0].Rank.Int())

	assert.Nil(t, Paginate([]int{}, 21))
	assert.Len(t, Paginate([]int{1, 2, 3}, 0), 1)
}

func TestEscapeName(t *testing.T) {
	assert.Equal(t, `mr\_\_cool\_`, EscapeName("mr__cool_"))
	assert.Equal(t, "plain", EscapeName("plain"))
}

func testView(kind engine.ViewKind, members int) *engine.View {
	period := &superlative.Period{
		ID:     "oct",
		Title:  "October Wars",
		Start:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Metric: superlative.MetricSpec{Kind: superlative.MetricWars},
	}
	return &engine.View{
		Kind:   kind,
		Track:  superlative.TrackPrimary,
		Guild:  "Sky Wardens",
		Period: period,
		Brackets: []superlative.Bracket{
			{ID: "A", Name: "Recruit", Threshold: 0},
			{ID: "B", Name: "Knight", Threshold: 1000},
		},
		Members:     rankedN(members),
		GeneratedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		CapturedAt:  time.Date(2026, 9, 30, 23, 55, 0, 0, time.UTC),
	}
}

func TestRenderLeaderboard_Columns(t *testing.T) {
	view := testView(engine.ViewLive, 50)
	view.Members[0].Transition = superlative.TransitionUp

	msgs := RenderLeaderboard(view, DefaultOptions())
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Embeds, 1)

	embed := msgs[0].Embeds[0]
	assert.Equal(t, "🏆 October Wars · Sky Wardens", embed.Title)
	assert.Contains(t, embed.Description, "Wars fought")
	assert.Contains(t, embed.Description, "**Knight** (B): 1,000+")
	// Highest bracket is listed first.
	assert.Less(t, strings.Index(embed.Description, "Knight"), strings.Index(embed.Description, "Recruit"))

	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "#1-21", embed.Fields[0].Name)
	assert.Equal(t, "#43-50", embed.Fields[2].Name)
	assert.True(t, embed.Fields[0].Inline)
	assert.Contains(t, embed.Fields[0].Value, `player\_0 · 50 ▲`)
	assert.Len(t, strings.Split(embed.Fields[2].Value, "\n"), 8)
}

// columnNames собирает заголовки колонок всех сообщений по порядку.
func columnNames(msgs []discord.MessagePayload) []string {
	var names []string
	for _, msg := range msgs {
		for _, e := range msg.Embeds {
			for _, f := range e.Fields {
				names = append(names, f.Name)
			}
		}
	}
	return names
}

func TestRenderLeaderboard_SplitsLargeTables(t *testing.T) {
	msgs := RenderLeaderboard(testView(engine.ViewLive, 21*30), DefaultOptions())
	require.Greater(t, len(msgs), 1)

	for i, msg := range msgs {
		assert.LessOrEqual(t, msg.EmbedLength(), discord.MaxEmbedTotalLength, "message %d", i)
		assert.LessOrEqual(t, len(msg.Embeds), discord.MaxEmbedsPerMessage)
		for _, e := range msg.Embeds {
			assert.LessOrEqual(t, len(e.Fields), columnsPerEmbed)
		}
	}

	names := columnNames(msgs)
	require.Len(t, names, 30)
	assert.Equal(t, "#1-21", names[0])
	assert.Equal(t, "#610-630", names[29])
	assert.NotEmpty(t, msgs[0].Embeds[0].Title)
	assert.Empty(t, msgs[1].Embeds[0].Title)
}

func TestRenderLeaderboard_LongNamesStayWithinMessageTotal(t *testing.T) {
	view := testView(engine.ViewLive, 150)
	for i := range view.Members {
		view.Members[i].DisplayName = fmt.Sprintf("Some_Player_%04d", i)
		view.Members[i].FormattedValue = "1,234,567"
		view.Members[i].Transition = superlative.TransitionDown
	}

	msgs := RenderLeaderboard(view, DefaultOptions())
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		total := 0
		for _, e := range msg.Embeds {
			total += utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
			for _, f := range e.Fields {
				total += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
			}
			if e.Footer != nil {
				total += utf8.RuneCountInString(e.Footer.Text)
			}
		}
		assert.LessOrEqual(t, total, discord.MaxEmbedTotalLength)
	}
	assert.Len(t, columnNames(msgs), 8)
}

func TestRenderLeaderboard_Upcoming(t *testing.T) {
	msgs := RenderLeaderboard(testView(engine.ViewUpcoming, 0), DefaultOptions())
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Embeds, 1)
	assert.Empty(t, msgs[0].Embeds[0].Fields)
	assert.Contains(t, msgs[0].Embeds[0].Description, "Starts <t:")
	assert.Equal(t, ColorUpcoming, msgs[0].Embeds[0].Color)
}

func TestRenderLeaderboard_Historical(t *testing.T) {
	msgs := RenderLeaderboard(testView(engine.ViewHistorical, 3), DefaultOptions())
	assert.Contains(t, msgs[0].Embeds[0].Description, "Final standings captured <t:1790812500:F>")
}

func TestFitField(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = strings.Repeat("x", 30)
	}
	out := fitField(lines)
	assert.LessOrEqual(t, len(out), 1024)
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestRenderError(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)

	tests := []struct {
		name      string
		err       error
		wantTitle string
		wantText  string
		wantColor int
	}{
		{
			name:      "no active period",
			err:       shared.NewDomainError("superlative", "Active", shared.ErrNoActivePeriod, "x"),
			wantTitle: "No active competition",
			wantColor: ColorInfo,
		},
		{
			name:      "rate limited with hint",
			err:       &shared.UpstreamError{Service: "gameapi", Status: 429, RetryAfter: 90 * time.Second},
			wantTitle: "Rate limited",
			wantText:  "<t:1800000090:t>",
			wantColor: ColorError,
		},
		{
			name:      "rate limited without hint",
			err:       &shared.UpstreamError{Service: "gameapi", Status: 429},
			wantText:  "<t:1800000060:t>",
			wantTitle: "Rate limited",
			wantColor: ColorError,
		},
		{
			name:      "invalid date shows message",
			err:       shared.NewDomainError("superlative", "ResolvePeriod", shared.ErrInvalidHistoricalDate, `"abc" is neither`),
			wantTitle: "Unknown period",
			wantText:  `"abc" is neither`,
			wantColor: ColorInfo,
		},
		{
			name:      "missing baseline",
			err:       &superlative.MissingBaselineError{UUID: "u1"},
			wantTitle: "Still collecting data",
			wantColor: ColorError,
		},
		{
			name:      "upstream failure",
			err:       &shared.UpstreamError{Service: "gameapi", Status: 503, Message: "down"},
			wantTitle: "Game API error",
			wantColor: ColorError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := RenderError(tt.err, now)
			require.Len(t, msg.Embeds, 1)
			assert.Equal(t, tt.wantTitle, msg.Embeds[0].Title)
			assert.Equal(t, tt.wantColor, msg.Embeds[0].Color)
			if tt.wantText != "" {
				assert.Contains(t, msg.Embeds[0].Description, tt.wantText)
			}
		})
	}
}
