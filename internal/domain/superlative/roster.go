package superlative

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

// RosterEntry - участник гильдии в том виде, в каком его отдаёт игровой API.
type RosterEntry struct {
	UUID        string
	Username    string
	RankTag     string
	JoinedAt    time.Time
	Contributed int64
}

// Roster - состав гильдии на момент запроса.
type Roster struct {
	Guild     string
	Prefix    string
	Members   []RosterEntry
	FetchedAt time.Time
}

// Len возвращает количество участников.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Members)
}

// UUIDs возвращает идентификаторы участников в порядке состава.
func (r *Roster) UUIDs() []string {
	out := make([]string, 0, r.Len())
	for _, m := range r.Members {
		out = append(out, m.UUID)
	}
	return out
}

// NormalizeUUID приводит UUID игрока к каноническому виду с дефисами в нижнем регистре.
// API отдаёт UUID как с дефисами, так и без.
func NormalizeUUID(s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", shared.WrapError("superlative", "NormalizeUUID", shared.ErrInvalidInput, "malformed player uuid", err)
	}
	return id.String(), nil
}

// DisplayName возвращает имя для таблицы, при отсутствии - начало UUID.
func (e RosterEntry) DisplayName() string {
	if e.Username != "" {
		return e.Username
	}
	if len(e.UUID) >= 8 {
		return e.UUID[:8]
	}
	return e.UUID
}
