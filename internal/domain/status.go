package domain

import "strings"

// WorkflowStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
//
// Статус монотонный: из финального статуса выйти нельзя.
// Значения на проводе — в нижнем регистре, как их отдаёт оркестратор.
type WorkflowStatus string

const (
	// WorkflowStatusPending — workflow создан, но ещё не запущен.
	WorkflowStatusPending WorkflowStatus = "pending"

	// WorkflowStatusRunning — workflow выполняется.
	WorkflowStatusRunning WorkflowStatus = "running"

	// WorkflowStatusCompleted — workflow успешно завершён.
	WorkflowStatusCompleted WorkflowStatus = "completed"

	// WorkflowStatusFailed — workflow завершился с ошибкой.
	WorkflowStatusFailed WorkflowStatus = "failed"

	// WorkflowStatusCancelled — workflow отменён оркестратором.
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный (workflow завершён).
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет, допустим ли переход s → next.
//
// Повтор того же статуса допустим. Из финального статуса переходов нет,
// в PENDING вернуться нельзя.
func (s WorkflowStatus) CanTransitionTo(next WorkflowStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	switch next {
	case WorkflowStatusPending:
		return false
	case WorkflowStatusRunning:
		return s == WorkflowStatusPending
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление WorkflowStatus.
func (s WorkflowStatus) String() string {
	return string(s)
}

// ParseWorkflowStatus парсит строку в WorkflowStatus без учёта регистра.
// Второе значение — false для неизвестного статуса.
func ParseWorkflowStatus(s string) (WorkflowStatus, bool) {
	switch WorkflowStatus(strings.ToLower(strings.TrimSpace(s))) {
	case WorkflowStatusPending:
		return WorkflowStatusPending, true
	case WorkflowStatusRunning:
		return WorkflowStatusRunning, true
	case WorkflowStatusCompleted:
		return WorkflowStatusCompleted, true
	case WorkflowStatusFailed:
		return WorkflowStatusFailed, true
	case WorkflowStatusCancelled:
		return WorkflowStatusCancelled, true
	default:
		return "", false
	}
}

// StepStatus — статус шага workflow.
//
// Совпадает с WorkflowStatus, плюс SKIPPED для шагов,
// зависимости которых упали.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusCancelled StepStatus = "cancelled"
	StepStatusSkipped   StepStatus = "skipped"
)

// IsTerminal возвращает true, если шаг больше не изменит статус.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusCancelled, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// IsUnsuccessful возвращает true для финальных статусов, отличных от COMPLETED.
func (s StepStatus) IsUnsuccessful() bool {
	return s.IsTerminal() && s != StepStatusCompleted
}

// AgentStatus — статус агента (worker-контейнера).
type AgentStatus string

const (
	AgentStatusCreated AgentStatus = "created"
	AgentStatusRunning AgentStatus = "running"
	AgentStatusStopped AgentStatus = "stopped"
	AgentStatusPaused  AgentStatus = "paused"
	AgentStatusFailed  AgentStatus = "failed"
)

// IsFinished возвращает true, если агент завершил работу.
func (s AgentStatus) IsFinished() bool {
	return s == AgentStatusStopped || s == AgentStatusFailed
}
