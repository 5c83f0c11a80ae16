package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD SELECTOR
// Определяет активный период и при смене периода запускает сброс базовых значений.
// ══════════════════════════════════════════════════════════════════════════════

// Selector выбирает активный период и синхронизирует его с хранилищем настроек.
type Selector struct {
	registry *superlative.Registry
	settings superlative.SettingsStore
	metrics  Metrics
	logger   *slog.Logger
}

// NewSelector создаёт Selector.
func NewSelector(registry *superlative.Registry, settings superlative.SettingsStore, m Metrics, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{
		registry: registry,
		settings: settings,
		metrics:  orNop(m),
		logger:   log.With(logger.Component("selector")),
	}
}

// Registry возвращает реестр периодов.
func (s *Selector) Registry() *superlative.Registry {
	return s.registry
}

// Active возвращает период, действующий в момент now, или nil, если такого нет.
//
// Если сохранённый активный период отличается, выполняется смена периода:
// ровно один из конкурирующих вызовов видит rolled = true. Взведённый флаг
// сброса (в том числе оставшийся после сбоя) снимается здесь же, до того как
// период вернётся вызывающему.
func (s *Selector) Active(ctx context.Context, now time.Time) (*superlative.Period, error) {
	period := s.registry.ActiveAt(now)
	if period == nil {
		return nil, nil
	}

	// Быстрый путь: период не менялся и сброс не ожидается.
	stored, err := s.settings.Get(ctx, superlative.SettingActivePeriod)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("read active period: %w", err)
	}
	if err == nil && stored == period.ID {
		pending, err := s.settings.ResetPending(ctx)
		if err != nil {
			return nil, fmt.Errorf("read reset flag: %w", err)
		}
		if !pending {
			return period, nil
		}
	}

	rolled, err := s.settings.Rollover(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("rollover to %s: %w", period.ID, err)
	}
	if rolled {
		s.metrics.IncRollover()
		s.logger.Info("competition period changed",
			logger.Period(period.ID),
			"previous", stored,
			"title", period.Title,
		)
	}

	wiped, err := s.settings.CompletePendingReset(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset baselines: %w", err)
	}
	if wiped {
		s.metrics.IncBaselineWipe()
		s.logger.Info("baselines reset for new period", logger.Period(period.ID))
	}

	return period, nil
}

// RequireActive как Active, но отсутствие периода - ошибка ErrNoActivePeriod.
func (s *Selector) RequireActive(ctx context.Context, now time.Time) (*superlative.Period, error) {
	period, err := s.Active(ctx, now)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, shared.NewDomainError("superlative", "Active", shared.ErrNoActivePeriod,
			"no competition period has started yet")
	}
	return period, nil
}
