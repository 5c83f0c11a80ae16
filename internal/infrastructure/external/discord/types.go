// Package discord implements the chat platform interaction protocol:
// interaction payloads, signature verification and followup webhooks.
package discord

import (
	"encoding/json"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION TYPES
// ══════════════════════════════════════════════════════════════════════════════

// InteractionType identifies the kind of inbound interaction.
type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
)

// ResponseType identifies the kind of interaction response.
type ResponseType int

const (
	ResponsePong                             ResponseType = 1
	ResponseChannelMessageWithSource         ResponseType = 4
	ResponseDeferredChannelMessageWithSource ResponseType = 5
)

// MessageFlagEphemeral hides the response from everyone but the caller.
const MessageFlagEphemeral = 1 << 6

// Interaction is an inbound interaction payload.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Data          *CommandData    `json:"data,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Locale        string          `json:"locale,omitempty"`
}

// CommandData holds the invoked command and its options.
type CommandData struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Options []CommandOption `json:"options,omitempty"`
}

// CommandOption is one (possibly nested) command option.
type CommandOption struct {
	Name    string          `json:"name"`
	Type    int             `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Options []CommandOption `json:"options,omitempty"`
}

// Member is a guild member invoking a command.
type Member struct {
	User  *User    `json:"user,omitempty"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// User is a platform user.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
}

// Caller returns the invoking user, in a guild or a DM.
func (i *Interaction) Caller() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// CommandName returns the invoked command, or "" for non-command interactions.
func (i *Interaction) CommandName() string {
	if i.Data == nil {
		return ""
	}
	return i.Data.Name
}

// StringOption looks up a string option by name, descending into subcommands.
func (i *Interaction) StringOption(name string) (string, bool) {
	if i.Data == nil {
		return "", false
	}
	return findStringOption(i.Data.Options, name)
}

// Subcommand returns the first subcommand name, if any.
func (i *Interaction) Subcommand() string {
	if i.Data == nil {
		return ""
	}
	for _, opt := range i.Data.Options {
		if len(opt.Value) == 0 {
			return opt.Name
		}
	}
	return ""
}

func findStringOption(opts []CommandOption, name string) (string, bool) {
	for _, opt := range opts {
		if strings.EqualFold(opt.Name, name) && len(opt.Value) > 0 {
			var s string
			if err := json.Unmarshal(opt.Value, &s); err == nil {
				return s, true
			}
			return strings.Trim(string(opt.Value), `"`), true
		}
		if v, ok := findStringOption(opt.Options, name); ok {
			return v, true
		}
	}
	return "", false
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// InteractionResponse is the synchronous reply to an interaction.
type InteractionResponse struct {
	Type ResponseType    `json:"type"`
	Data *MessagePayload `json:"data,omitempty"`
}

// MessagePayload is a message body for responses, edits and followups.
type MessagePayload struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
	Flags   int     `json:"flags,omitempty"`
}

// Embed is a rich message block.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one titled column or row in an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the small text under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Platform limits for embeds. MaxEmbedTotalLength applies to the sum of
// all embeds in one message.
const (
	MaxEmbedsPerMessage       = 10
	MaxFieldsPerEmbed         = 25
	MaxFieldValueLength       = 1024
	MaxEmbedDescriptionLength = 4096
	MaxEmbedTotalLength       = 6000
)

// Length is the embed's text size as counted against MaxEmbedTotalLength.
// Byte length never undercounts the platform's character count.
func (e Embed) Length() int {
	n := len(e.Title) + len(e.Description)
	for _, f := range e.Fields {
		n += f.Length()
	}
	if e.Footer != nil {
		n += len(e.Footer.Text)
	}
	return n
}

// Length is the field's text size.
func (f EmbedField) Length() int {
	return len(f.Name) + len(f.Value)
}

// EmbedLength sums Length over all embeds of the message.
func (p MessagePayload) EmbedLength() int {
	n := 0
	for _, e := range p.Embeds {
		n += e.Length()
	}
	return n
}

// Pong is the reply to a ping interaction.
func Pong() InteractionResponse {
	return InteractionResponse{Type: ResponsePong}
}

// Deferred acknowledges a command and promises a later edit.
func Deferred() InteractionResponse {
	return InteractionResponse{Type: ResponseDeferredChannelMessageWithSource}
}

// Immediate replies with a message right away.
func Immediate(payload MessagePayload) InteractionResponse {
	return InteractionResponse{Type: ResponseChannelMessageWithSource, Data: &payload}
}
