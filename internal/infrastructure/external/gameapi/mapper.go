package gameapi

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/guildhub/superlatives/internal/domain/superlative"
)

// ErrNilDTO is returned when a nil DTO is passed to the mapper.
var ErrNilDTO = errors.New("gameapi: nil dto")

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts API DTOs into domain values so API shape changes stay here.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// RosterFromDTO flattens rank groups into a roster. Members are ordered by
// rank group then UUID so repeated fetches yield the same order.
func (m *Mapper) RosterFromDTO(dto *GuildDTO, fetchedAt time.Time) (*superlative.Roster, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	roster := &superlative.Roster{
		Guild:     dto.Name,
		Prefix:    dto.Prefix,
		Members:   make([]superlative.RosterEntry, 0, dto.Members.Total),
		FetchedAt: fetchedAt,
	}

	ranks := make([]string, 0, len(dto.Members.ByRank))
	for rank := range dto.Members.ByRank {
		ranks = append(ranks, rank)
	}
	sort.Strings(ranks)

	for _, rank := range ranks {
		group := dto.Members.ByRank[rank]
		entries := make([]superlative.RosterEntry, 0, len(group))
		for key, member := range group {
			entry, err := m.memberFromDTO(key, rank, member)
			if err != nil {
				return nil, fmt.Errorf("guild %s: %w", dto.Name, err)
			}
			entries = append(entries, entry)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].UUID < entries[j].UUID })
		roster.Members = append(roster.Members, entries...)
	}

	return roster, nil
}

func (m *Mapper) memberFromDTO(key, rank string, dto GuildMemberDTO) (superlative.RosterEntry, error) {
	raw := dto.UUID
	if raw == "" {
		raw = key
	}
	id, err := superlative.NormalizeUUID(raw)
	if err != nil {
		return superlative.RosterEntry{}, fmt.Errorf("member %q: %w", key, err)
	}

	username := dto.Username
	if username == "" && key != raw {
		username = key
	}

	entry := superlative.RosterEntry{
		UUID:        id,
		Username:    username,
		RankTag:     rank,
		Contributed: dto.Contributed,
	}
	if dto.Joined != nil {
		entry.JoinedAt = *dto.Joined
	}
	return entry, nil
}

// PlayerStatsFromDTO maps a player profile to the metric inputs.
func (m *Mapper) PlayerStatsFromDTO(dto *PlayerDTO) (*superlative.PlayerStats, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	id, err := superlative.NormalizeUUID(dto.UUID)
	if err != nil {
		return nil, err
	}

	g := dto.GlobalData
	return &superlative.PlayerStats{
		UUID:          id,
		PlaytimeHours: dto.Playtime,
		TotalLevel:    g.TotalLevel,
		MobsKilled:    g.KilledMobs,
		ChestsFound:   g.ChestsFound,
		Wars:          g.Wars,
		Quests:        g.CompletedQuests,
		DungeonsTotal: g.Dungeons.Total,
		Dungeons:      copyCounts(g.Dungeons.List),
		RaidsTotal:    g.Raids.Total,
		Raids:         copyCounts(g.Raids.List),
	}, nil
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
