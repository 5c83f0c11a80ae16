package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING COMPUTER
// ══════════════════════════════════════════════════════════════════════════════

// Ranker считает счёт участников по базовым значениям и ранжирует их.
type Ranker struct {
	baselines superlative.BaselineStore
	metrics   Metrics
	logger    *slog.Logger
}

// NewRanker создаёт Ranker.
func NewRanker(baselines superlative.BaselineStore, m Metrics, log *slog.Logger) *Ranker {
	if log == nil {
		log = slog.Default()
	}
	return &Ranker{
		baselines: baselines,
		metrics:   orNop(m),
		logger:    log.With(logger.Component("ranker")),
	}
}

// Rank ранжирует состав по активному периоду.
//
// Базовые значения читаются одним запросом. Если хотя бы у одного участника
// строки нет, вся таблица отклоняется с *superlative.MissingBaselineError
// (первый отсутствующий в порядке состава): частичная таблица не отдаётся.
func (r *Ranker) Rank(ctx context.Context, period *superlative.Period, track superlative.Track, roster *superlative.Roster) ([]superlative.RankedMember, error) {
	began := time.Now()

	uuids := make([]string, len(roster.Members))
	for i, member := range roster.Members {
		uuids[i] = member.UUID
	}

	rows, err := r.baselines.GetMany(ctx, uuids)
	if err != nil {
		return nil, fmt.Errorf("read baselines: %w", err)
	}

	scored := make([]superlative.ScoredMember, len(roster.Members))
	for i, member := range roster.Members {
		row, ok := rows[member.UUID]
		if !ok {
			return nil, &superlative.MissingBaselineError{UUID: member.UUID}
		}
		scored[i] = superlative.ScoredMember{
			UUID:        member.UUID,
			DisplayName: member.DisplayName(),
			RankTag:     member.RankTag,
			Score:       row.Score(),
		}
	}

	ranked := superlative.RankMembers(period, track, scored)

	elapsed := time.Since(began)
	r.metrics.ObserveRank(track.String(), elapsed)
	r.logger.Debug("members ranked",
		logger.Period(period.ID),
		logger.Track(track.String()),
		"members", len(ranked),
		logger.Latency(elapsed),
	)
	return ranked, nil
}
