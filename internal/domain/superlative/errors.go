package superlative

import (
	"fmt"

	"github.com/guildhub/superlatives/internal/domain/shared"
)

// MissingBaselineError - у участника нет базового значения, счёт не определён.
// Восстанавливается повторной сверкой состава гильдии.
type MissingBaselineError struct {
	UUID string
}

// Error реализует интерфейс error.
func (e *MissingBaselineError) Error() string {
	return fmt.Sprintf("no baseline for player %s", e.UUID)
}

// Is сопоставляет ошибку с shared.ErrMissingBaseline.
func (e *MissingBaselineError) Is(target error) bool {
	return target == shared.ErrMissingBaseline
}
