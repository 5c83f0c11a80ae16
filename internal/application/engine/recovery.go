package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
)

// DefaultRecoveryAttempts - сколько раз ранжирование повторяется после сверки.
const DefaultRecoveryAttempts = 1

// ══════════════════════════════════════════════════════════════════════════════
// SELF-HEALING RETRY
// Если у участника нет базы, синхронно сверяем гильдию и пробуем снова.
// ══════════════════════════════════════════════════════════════════════════════

// Recovery связывает Ranker и Reconciler.
type Recovery struct {
	ranker     *Ranker
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewRecovery создаёт Recovery.
func NewRecovery(ranker *Ranker, reconciler *Reconciler, log *slog.Logger) *Recovery {
	if log == nil {
		log = slog.Default()
	}
	return &Recovery{
		ranker:     ranker,
		reconciler: reconciler,
		logger:     log.With(logger.Component("recovery")),
	}
}

// RankWithRecovery ранжирует состав. При *superlative.MissingBaselineError
// сверяет гильдию синхронно (в обход блокировки фоновой сверки, потому что
// результат нужен сейчас) и, пока attemptsLeft > 0, повторяет ранжирование.
// Ошибка последней попытки возвращается как есть.
func (r *Recovery) RankWithRecovery(
	ctx context.Context,
	period *superlative.Period,
	track superlative.Track,
	roster *superlative.Roster,
	guild string,
	attemptsLeft int,
) ([]superlative.RankedMember, error) {
	for {
		ranked, err := r.ranker.Rank(ctx, period, track, roster)
		if err == nil {
			return ranked, nil
		}

		var missing *superlative.MissingBaselineError
		if !errors.As(err, &missing) {
			return nil, err
		}

		r.logger.Info("baseline missing, reconciling guild",
			logger.Guild(guild),
			logger.Player(missing.UUID),
			"attempts_left", attemptsLeft,
		)

		if _, recErr := r.reconciler.ReconcileRoster(ctx, period, roster); recErr != nil {
			r.logger.Warn("self-heal reconcile failed", logger.Guild(guild), logger.Err(recErr))
		}

		if attemptsLeft <= 0 {
			return nil, err
		}
		attemptsLeft--
	}
}
