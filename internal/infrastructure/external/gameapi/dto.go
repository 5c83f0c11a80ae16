// Package gameapi implements the game statistics API client.
// It fetches guild rosters and per-player statistics and maps them into
// the superlative domain model.
package gameapi

import (
	"encoding/json"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// GUILD DTOs
// ══════════════════════════════════════════════════════════════════════════════

// GuildDTO represents a guild as returned by the API.
type GuildDTO struct {
	UUID    string     `json:"uuid"`
	Name    string     `json:"name"`
	Prefix  string     `json:"prefix"`
	Level   int        `json:"level"`
	Members MembersDTO `json:"members"`
}

// MembersDTO groups members under their in-game rank tag:
//
//	{"total": 2, "owner": {"<uuid>": {...}}, "recruit": {"<uuid>": {...}}}
type MembersDTO struct {
	Total  int
	ByRank map[string]map[string]GuildMemberDTO
}

// UnmarshalJSON splits the "total" counter from the rank groups.
func (m *MembersDTO) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ByRank = make(map[string]map[string]GuildMemberDTO, len(raw))
	for key, value := range raw {
		if key == "total" {
			if err := json.Unmarshal(value, &m.Total); err != nil {
				return err
			}
			continue
		}
		var group map[string]GuildMemberDTO
		if err := json.Unmarshal(value, &group); err != nil {
			return err
		}
		m.ByRank[key] = group
	}
	return nil
}

// GuildMemberDTO represents one roster entry. The map key holding it is either
// the player UUID or the username, depending on the identifier requested.
type GuildMemberDTO struct {
	UUID        string     `json:"uuid,omitempty"`
	Username    string     `json:"username,omitempty"`
	Online      bool       `json:"online"`
	Contributed int64      `json:"contributed"`
	Joined      *time.Time `json:"joined,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// PlayerDTO represents the subset of a player profile the metrics use.
type PlayerDTO struct {
	UUID       string        `json:"uuid"`
	Username   string        `json:"username"`
	Playtime   float64       `json:"playtime"` // hours
	GlobalData GlobalDataDTO `json:"globalData"`
}

// GlobalDataDTO holds account-wide counters.
type GlobalDataDTO struct {
	Wars            int64        `json:"wars"`
	TotalLevel      int64        `json:"totalLevel"`
	KilledMobs      int64        `json:"killedMobs"`
	ChestsFound     int64        `json:"chestsFound"`
	CompletedQuests int64        `json:"completedQuests"`
	Dungeons        CompletedDTO `json:"dungeons"`
	Raids           CompletedDTO `json:"raids"`
}

// CompletedDTO is a total plus per-name completion counts.
type CompletedDTO struct {
	Total int64            `json:"total"`
	List  map[string]int64 `json:"list"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the error body returned on non-2xx responses.
type APIErrorDTO struct {
	Error  string `json:"Error"`
	Detail string `json:"detail,omitempty"`
}

// Message returns the most specific text available.
func (e APIErrorDTO) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
