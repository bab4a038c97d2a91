package store

import (
	"errors"

	"github.com/shaiso/Flowkit/internal/domain"
)

// Ошибки хранилища.
var (
	// ErrKeyNotFound — ключ отсутствует в состоянии workflow.
	ErrKeyNotFound = domain.ErrKeyNotFound

	// ErrTaskNotFound — payload task отсутствует (не выдан или истёк TTL).
	// Для воркера это фатальная ошибка: повтор не поможет.
	ErrTaskNotFound = errors.New("task not found")

	// ErrResultNotFound — результат или ошибка task ещё не записаны или истекли.
	ErrResultNotFound = errors.New("task result not found")

	// ErrUnknownOutcome — в канал завершения пришло неизвестное сообщение.
	ErrUnknownOutcome = errors.New("unknown task outcome")
)
