// Package engine - ядро соревнований: выбор активного периода, сверка базовых
// значений, ранжирование и сборка таблиц лидеров.
//
// Пакет не знает о транспорте: HTTP, чат-интеракции и фоновые задачи
// вызывают его через Leaderboards и Reconciler.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress показывает пользователю промежуточный статус долгого запроса.
// Ошибки отчёта не прерывают работу движка.
type Progress interface {
	Update(ctx context.Context, status string) error
}

// Статусы, которые движок сообщает по ходу запроса.
const (
	StatusFetchingGuild   = "Fetching guild…"
	StatusFetchingPlayers = "Fetching player data…"
	StatusRanking         = "Ranking members…"
)

// NopProgress ничего не делает.
type NopProgress struct{}

// Update реализует Progress.
func (NopProgress) Update(context.Context, string) error { return nil }

// LogProgress пишет статусы в лог. Используется CLI и HTTP API.
type LogProgress struct {
	Logger *slog.Logger
}

// Update реализует Progress.
func (p LogProgress) Update(_ context.Context, status string) error {
	if p.Logger != nil {
		p.Logger.Debug("progress", "status", status)
	}
	return nil
}

func report(ctx context.Context, p Progress, status string, log *slog.Logger) {
	if p == nil {
		return
	}
	if err := p.Update(ctx, status); err != nil {
		log.Warn("progress update failed", "status", status, "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// Locker выдаёт эксклюзивные блокировки с истечением.
// ok = false, если блокировка уже занята.
type Locker interface {
	TryLock(ctx context.Context, resource string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// LocalLocker - блокировки внутри процесса, когда Redis отключён.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocalLocker создаёт пустой LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), clock: time.Now}
}

// TryLock реализует Locker. Просроченная блокировка считается свободной.
func (l *LocalLocker) TryLock(_ context.Context, resource string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if exp, ok := l.held[resource]; ok && now.Before(exp) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.held[resource] = expires

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[resource] == expires {
				delete(l.held, resource)
			}
		})
	}, true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics - метрики, которые пишет движок. Реализуется metrics.Manager.
type Metrics interface {
	IncRollover()
	IncBaselineWipe()
	ObserveReconcile(guild, outcome string, updated, created, failed int, d time.Duration)
	ObserveRank(track string, d time.Duration)
	ObserveLeaderboard(track, view, outcome string)
	IncSnapshot(track string)
}

type nopMetrics struct{}

func (nopMetrics) IncRollover()                                                  {}
func (nopMetrics) IncBaselineWipe()                                              {}
func (nopMetrics) ObserveReconcile(string, string, int, int, int, time.Duration) {}
func (nopMetrics) ObserveRank(string, time.Duration)                             {}
func (nopMetrics) ObserveLeaderboard(string, string, string)                     {}
func (nopMetrics) IncSnapshot(string)                                            {}

func orNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
