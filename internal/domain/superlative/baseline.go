package superlative

import (
	"time"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

// BaselineRow - одна строка на игрока: последнее снятое значение метрики
// и значение на начало активного периода.
type BaselineRow struct {
	UUID          string
	CurrentValue  int64
	BaselineValue int64
	LastSampledAt time.Time
}

// NewBaselineRow создаёт строку для впервые увиденного игрока.
// Базой становится текущее значение, поэтому счёт начинается с нуля.
func NewBaselineRow(uuid string, value int64, at time.Time) *BaselineRow {
	return &BaselineRow{
		UUID:          uuid,
		CurrentValue:  value,
		BaselineValue: value,
		LastSampledAt: at,
	}
}

// Score - прирост за период. Может быть отрицательным при откате данных API.
func (b *BaselineRow) Score() shared.Score {
	return shared.Score(b.CurrentValue - b.BaselineValue)
}

// Observe обновляет текущее значение. База не меняется.
func (b *BaselineRow) Observe(value int64, at time.Time) {
	b.CurrentValue = value
	b.LastSampledAt = at
}
