package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/internal/infrastructure/external/discord"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// Превращает таблицу лидеров в embed-сообщения: заголовок, легенда ступеней,
// колонки по DefaultColumnSize участников.
// ══════════════════════════════════════════════════════════════════════════════

// Цвета embed по виду таблицы.
const (
	ColorLive       = 0x5865F2
	ColorHistorical = 0x95A5A6
	ColorUpcoming   = 0xF1C40F
	ColorError      = 0xED4245
	ColorInfo       = 0x3498DB
)

// columnsPerEmbed - сколько колонок помещается в один embed.
// Три inline-колонки образуют ряд, 24 поля - восемь полных рядов.
const columnsPerEmbed = 24

// Options настраивает рендеринг.
type Options struct {
	// ColumnSize - участников в колонке.
	ColumnSize int
}

// DefaultOptions возвращает настройки по умолчанию.
func DefaultOptions() Options {
	return Options{ColumnSize: DefaultColumnSize}
}

// RenderLeaderboard строит сообщения с таблицей лидеров. Первое сообщение
// начинается с заголовка. Колонки, не поместившиеся в лимиты одного
// сообщения, переносятся в следующие.
func RenderLeaderboard(view *engine.View, opts Options) []discord.MessagePayload {
	if opts.ColumnSize <= 0 {
		opts.ColumnSize = DefaultColumnSize
	}

	header := discord.Embed{
		Title:       title(view),
		Description: description(view),
		Color:       color(view.Kind),
		Footer:      footer(view),
	}
	if !view.GeneratedAt.IsZero() {
		header.Timestamp = view.GeneratedAt.UTC().Format(time.RFC3339)
	}

	if view.Kind == engine.ViewUpcoming {
		return []discord.MessagePayload{{Embeds: []discord.Embed{header}}}
	}

	b := newMessageBuilder(header)
	for _, column := range renderColumns(view.Members, opts.ColumnSize) {
		b.add(column)
	}
	return b.messages
}

// messageBuilder раскладывает колонки по embed и сообщениям.
// Лимиты: columnsPerEmbed полей в embed, MaxEmbedsPerMessage embed
// и MaxEmbedTotalLength текста на сообщение.
type messageBuilder struct {
	messages []discord.MessagePayload
	color    int
	total    int // длина текста текущего сообщения
}

func newMessageBuilder(header discord.Embed) *messageBuilder {
	return &messageBuilder{
		messages: []discord.MessagePayload{{Embeds: []discord.Embed{header}}},
		color:    header.Color,
		total:    header.Length(),
	}
}

func (b *messageBuilder) add(field discord.EmbedField) {
	size := field.Length()
	msg := &b.messages[len(b.messages)-1]

	switch {
	case b.total+size > discord.MaxEmbedTotalLength:
		b.messages = append(b.messages, discord.MessagePayload{Embeds: []discord.Embed{{Color: b.color}}})
		b.total = 0
	case len(msg.Embeds[len(msg.Embeds)-1].Fields) == columnsPerEmbed:
		if len(msg.Embeds) == discord.MaxEmbedsPerMessage {
			b.messages = append(b.messages, discord.MessagePayload{Embeds: []discord.Embed{{Color: b.color}}})
			b.total = 0
		} else {
			msg.Embeds = append(msg.Embeds, discord.Embed{Color: b.color})
		}
	}

	msg = &b.messages[len(b.messages)-1]
	embed := &msg.Embeds[len(msg.Embeds)-1]
	embed.Fields = append(embed.Fields, field)
	b.total += size
}

// ─────────────────────────────────────────────────────────────────────────────
// Header
// ─────────────────────────────────────────────────────────────────────────────

func title(view *engine.View) string {
	name := "Superlatives"
	if view.Period != nil {
		name = view.Period.Title
	}
	if view.Guild != "" {
		return fmt.Sprintf("🏆 %s · %s", name, view.Guild)
	}
	return "🏆 " + name
}

func description(view *engine.View) string {
	var sb strings.Builder

	if view.Period != nil {
		sb.WriteString("**")
		sb.WriteString(view.Period.Metric.Label())
		sb.WriteString("**\n")
	}

	switch view.Kind {
	case engine.ViewUpcoming:
		if view.Period != nil {
			fmt.Fprintf(&sb, "Starts %s (%s)\n",
				timeutil.ChatTimestamp(view.Period.Start, timeutil.StyleLongDateTime),
				timeutil.ChatTimestamp(view.Period.Start, timeutil.StyleRelative))
		}
	case engine.ViewHistorical:
		if !view.CapturedAt.IsZero() {
			fmt.Fprintf(&sb, "Final standings captured %s\n",
				timeutil.ChatTimestamp(view.CapturedAt, timeutil.StyleLongDateTime))
		}
	}

	if legend := Legend(view.Brackets, metricOf(view)); legend != "" {
		sb.WriteString("\n")
		sb.WriteString(legend)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Legend перечисляет ступени с порогами, от высшей к низшей.
func Legend(brackets []superlative.Bracket, metric superlative.MetricSpec) string {
	if len(brackets) == 0 {
		return ""
	}
	lines := make([]string, 0, len(brackets)+1)
	lines = append(lines, "__Brackets__")
	for i := len(brackets) - 1; i >= 0; i-- {
		b := brackets[i]
		name := b.Name
		if name == "" {
			name = b.ID
		}
		lines = append(lines, fmt.Sprintf("**%s** (%s): %s+", EscapeName(name), EscapeName(b.ID), metric.FormatValue(b.Threshold)))
	}
	return strings.Join(lines, "\n")
}

func footer(view *engine.View) *discord.EmbedFooter {
	switch view.Kind {
	case engine.ViewUpcoming:
		return &discord.EmbedFooter{Text: "Upcoming competition"}
	case engine.ViewHistorical:
		return &discord.EmbedFooter{Text: fmt.Sprintf("%d members · archived", len(view.Members))}
	default:
		return &discord.EmbedFooter{Text: fmt.Sprintf("%d members · ▲ promotion ▼ demotion", len(view.Members))}
	}
}

func color(kind engine.ViewKind) int {
	switch kind {
	case engine.ViewHistorical:
		return ColorHistorical
	case engine.ViewUpcoming:
		return ColorUpcoming
	default:
		return ColorLive
	}
}

func metricOf(view *engine.View) superlative.MetricSpec {
	if view.Period == nil {
		return superlative.MetricSpec{Kind: superlative.MetricNone}
	}
	return view.Period.Metric
}

// ─────────────────────────────────────────────────────────────────────────────
// Columns
// ─────────────────────────────────────────────────────────────────────────────

func renderColumns(members []superlative.RankedMember, size int) []discord.EmbedField {
	pages := Paginate(members, size)
	fields := make([]discord.EmbedField, 0, len(pages))

	for _, page := range pages {
		first, last := page[0].Rank.Int(), page[len(page)-1].Rank.Int()

		lines := make([]string, 0, len(page))
		for _, m := range page {
			lines = append(lines, Row(m))
		}

		fields = append(fields, discord.EmbedField{
			Name:   fmt.Sprintf("#%d-%d", first, last),
			Value:  fitField(lines),
			Inline: true,
		})
	}
	return fields
}

// Row форматирует строку участника: ранг, имя, значение, стрелка.
func Row(m superlative.RankedMember) string {
	row := fmt.Sprintf("`%d.` %s · %s", m.Rank.Int(), EscapeName(m.DisplayName), m.FormattedValue)
	if arrow := m.Transition.Arrow(); arrow != "" {
		row += " " + arrow
	}
	return row
}

// fitField склеивает строки, обрезая колонку до лимита длины поля.
func fitField(lines []string) string {
	const ellipsis = "…"
	var sb strings.Builder
	for i, line := range lines {
		extra := len(line)
		if i > 0 {
			extra++
		}
		if sb.Len()+extra > discord.MaxFieldValueLength-len(ellipsis)-1 {
			sb.WriteString("\n")
			sb.WriteString(ellipsis)
			break
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
	}
	return sb.String()
}
