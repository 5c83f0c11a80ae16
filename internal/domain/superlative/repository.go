package superlative

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// Ключи строк настроек.
const (
	SettingActivePeriod = "superlative_active_period"
	SettingResetPending = "superlative_reset_pending"
)

// ══════════════════════════════════════════════════════════════════════════════
// BASELINE STORE
// ══════════════════════════════════════════════════════════════════════════════

// BaselineStore хранит по одной строке базовых значений на игрока.
// Реализация находится в infrastructure слое (PostgreSQL, память).
type BaselineStore interface {
	// Get возвращает строку игрока или shared.ErrNotFound.
	Get(ctx context.Context, uuid string) (*BaselineRow, error)

	// GetMany возвращает найденные строки по UUID. Отсутствующих игроков в карте нет.
	GetMany(ctx context.Context, uuids []string) (map[string]*BaselineRow, error)

	// UpsertCurrent записывает текущее значение, снятое для периода periodID.
	// Если строки нет, она создаётся с базой, равной value, и created = true.
	// Запись идемпотентна: повторный вызов с тем же значением ничего не меняет.
	//
	// Проверка активного периода и запись выполняются атомарно относительно
	// смены периода: если сохранённый активный период не periodID или сброс
	// ещё не завершён, запись отбрасывается с shared.ErrStalePeriod.
	UpsertCurrent(ctx context.Context, periodID, uuid string, value int64, at time.Time) (created bool, err error)

	// Count возвращает число строк.
	Count(ctx context.Context) (int64, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS STORE
// ══════════════════════════════════════════════════════════════════════════════

// SettingsStore хранит строки "ключ-значение" и выполняет смену периода.
type SettingsStore interface {
	// Get возвращает значение или shared.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set записывает значение.
	Set(ctx context.Context, key, value string) error

	// Rollover атомарно сравнивает сохранённый активный период с nextPeriodID.
	// При расхождении записывает новый ID, взводит флаг сброса и возвращает true.
	// Ровно один из конкурирующих вызовов получает true.
	Rollover(ctx context.Context, nextPeriodID string) (rolled bool, err error)

	// ResetPending сообщает, взведён ли флаг сброса.
	ResetPending(ctx context.Context) (bool, error)

	// CompletePendingReset в одной транзакции удаляет все базовые значения
	// и снимает флаг. Если флаг не взведён, ничего не делает и возвращает false.
	CompletePendingReset(ctx context.Context) (wiped bool, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT STORE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore хранит зафиксированные таблицы периодов.
type SnapshotStore interface {
	// Save сохраняет снапшот, заменяя предыдущий для той же пары (период, трек).
	Save(ctx context.Context, snapshot *Snapshot) error

	// Get возвращает снапшот или shared.ErrNotFound.
	Get(ctx context.Context, periodID string, track Track) (*Snapshot, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME STATS
// ══════════════════════════════════════════════════════════════════════════════

// GameStats - клиент внешнего игрового API.
// Ошибки API приходят как *shared.UpstreamError.
type GameStats interface {
	// GetGuildRoster возвращает состав гильдии по имени.
	GetGuildRoster(ctx context.Context, guild string) (*Roster, error)

	// GetPlayerStats возвращает статистику игрока.
	GetPlayerStats(ctx context.Context, uuid string) (*PlayerStats, error)
}

// RosterCache кеширует составы гильдий между запросами.
type RosterCache interface {
	Get(ctx context.Context, guild string) (*Roster, error)
	Set(ctx context.Context, roster *Roster, ttl time.Duration) error
}
