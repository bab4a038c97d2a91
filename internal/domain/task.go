package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome — финальный исход task, публикуемый в канал task:{id}:complete.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeError     Outcome = "error"
)

// Task — единица работы, выданная воркеру через хранилище.
//
// Task не является объектом API: оркестратор кладёт payload в task:{id},
// воркер читает его, выполняет и пишет ровно один исход (result или error).
// Повторная выдача того же task ID допустима при retry.
type Task struct {
	// ID — идентификатор task (ключ task:{id}).
	ID string `json:"task_id"`

	// WorkflowID — workflow, которому принадлежит task.
	WorkflowID string `json:"workflow_id,omitempty"`

	// StepID — шаг, для которого выдан task.
	StepID string `json:"step_id,omitempty"`

	// Type — тип task: "list", "map", "reduce" или пользовательский.
	Type string `json:"type,omitempty"`

	// Input — входные данные. Для map-шагов здесь лежит текущий элемент.
	Input map[string]Value `json:"input,omitempty"`

	// Index — индекс элемента map-шага, если оркестратор его передал.
	Index *int `json:"index,omitempty"`

	// RetryPolicy — retry шага, переданный оркестратором вместе с task.
	// Имеет приоритет над политикой из окружения воркера.
	RetryPolicy *RetryPolicy `json:"retry_policy,omitempty"`

	// CreatedAt — время выдачи task.
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// InputValue возвращает поле входа по имени.
func (t *Task) InputValue(name string) (Value, bool) {
	if t == nil || t.Input == nil {
		return nil, false
	}
	v, ok := t.Input[name]
	if !ok || v.IsNull() {
		return nil, false
	}
	return v, true
}

// ParseTask разбирает payload task из хранилища.
//
// Payload без обёртки (только входные данные) тоже допустим:
// тогда весь объект становится Input, а ID берётся из аргумента.
func ParseTask(id string, data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parse task %s: %w", id, err)
	}
	if task.Input == nil {
		var flat map[string]Value
		if err := json.Unmarshal(data, &flat); err == nil {
			for _, field := range []string{"task_id", "workflow_id", "step_id", "type", "index", "retry_policy", "created_at"} {
				delete(flat, field)
			}
			if len(flat) > 0 {
				task.Input = flat
			}
		}
	}
	if task.ID == "" {
		task.ID = id
	}
	return &task, nil
}

// Job — запись о запуске агента в рамках workflow (GET /workflows/{id}/jobs).
type Job struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	StepID      string     `json:"step_id"`
	AgentID     string     `json:"agent_id,omitempty"`
	TaskID      string     `json:"task_id,omitempty"`
	Status      StepStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WorkflowMetrics — метрики workflow (GET /workflows/{id}/metrics).
type WorkflowMetrics struct {
	WorkflowID     string         `json:"workflow_id"`
	Status         WorkflowStatus `json:"status"`
	TotalSteps     int            `json:"total_steps"`
	CompletedSteps int            `json:"completed_steps"`
	FailedSteps    int            `json:"failed_steps"`
	RunningSteps   int            `json:"running_steps"`
	TotalJobs      int            `json:"total_jobs"`
	Duration       Duration       `json:"duration,omitempty"`

	// Extra — прочие поля, которые оркестратор может добавить.
	Extra map[string]Value `json:"extra,omitempty"`
}

// AggregateMetrics — сводка по workflows за окно
// (GET /workflows/metrics/aggregate).
type AggregateMetrics struct {
	Period             string  `json:"period"`
	TotalWorkflows     int     `json:"total_workflows"`
	CompletedWorkflows int     `json:"completed_workflows"`
	FailedWorkflows    int     `json:"failed_workflows"`
	SuccessRate        float64 `json:"success_rate"`
	TotalSteps         int     `json:"total_steps"`
	FailedSteps        int     `json:"failed_steps"`
	AvgDuration        string  `json:"avg_duration"`
	TotalCPUMillicores int64   `json:"total_cpu_millicores"`
	TotalMemoryMB      int64   `json:"total_memory_mb"`
	AgentsDeployed     int     `json:"agents_deployed"`
	AgentsReused       int     `json:"agents_reused"`
	PoolEfficiency     float64 `json:"pool_efficiency"`
}
