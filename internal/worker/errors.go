package worker

import (
	"errors"

	"github.com/shaiso/Flowkit/internal/store"
)

// Ошибки воркера.
var (
	// ErrMissingTaskID — не задан TASK_ID. Фатально: исход писать некуда.
	ErrMissingTaskID = errors.New("TASK_ID is not set")

	// ErrTaskNotFound — payload task отсутствует в хранилище. Фатально.
	ErrTaskNotFound = store.ErrTaskNotFound

	// ErrUnknownTaskType — нет обработчика для типа task.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrMissingWorkflowID — ни task, ни окружение не указывают workflow.
	ErrMissingWorkflowID = errors.New("workflow id is not known")

	// ErrTaskTimeout — обработчик не уложился в TASK_TIMEOUT.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrHandlerPanic — обработчик запаниковал.
	ErrHandlerPanic = errors.New("task handler panicked")
)
