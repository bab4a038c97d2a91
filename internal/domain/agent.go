package domain

import "time"

// Agent — экземпляр воркера, развёрнутый оркестратором.
type Agent struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Status      AgentStatus       `json:"status"`
	EnvVars     map[string]string `json:"env_vars,omitempty"`
	CPULimit    int64             `json:"cpu_limit,omitempty"`
	MemoryLimit int64             `json:"memory_limit,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// DeployAgentRequest — payload для POST /agents.
type DeployAgentRequest struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	EnvVars     map[string]string `json:"env_vars,omitempty"`
	CPULimit    int64             `json:"cpu_limit,omitempty"`
	MemoryLimit int64             `json:"memory_limit,omitempty"`

	// WorkflowID и StepID — владелец агента. На провод не уходят:
	// Tagged переносит их в окружение как WORKFLOW_ID и STEP_ID.
	WorkflowID string `json:"-"`
	StepID     string `json:"-"`
}

// Tagged возвращает копию запроса, в окружение которой добавлены
// WORKFLOW_ID и STEP_ID владельца. Пустые значения не добавляются.
func (r DeployAgentRequest) Tagged() DeployAgentRequest {
	owner := make(map[string]string, 2)
	if r.WorkflowID != "" {
		owner[EnvWorkflowID] = r.WorkflowID
	}
	if r.StepID != "" {
		owner[EnvStepID] = r.StepID
	}
	if len(owner) == 0 {
		return r
	}
	return r.WithEnv(owner)
}

// WithEnv возвращает копию запроса с добавленными переменными окружения.
// Переменные из extra перезаписывают существующие.
func (r DeployAgentRequest) WithEnv(extra map[string]string) DeployAgentRequest {
	env := make(map[string]string, len(r.EnvVars)+len(extra))
	for k, v := range r.EnvVars {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	r.EnvVars = env
	return r
}

// Переменные окружения контракта воркера.
const (
	EnvWorkflowID = "WORKFLOW_ID"
	EnvStepID     = "STEP_ID"
	EnvTaskID     = "TASK_ID"
	EnvTaskType   = "TASK_TYPE"
	EnvStepType   = "STEP_TYPE"
)
