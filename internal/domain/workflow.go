package domain

import (
	"time"
)

// StepKind — вид шага в графе workflow.
type StepKind string

const (
	// StepKindSequential — одиночный шаг.
	StepKindSequential StepKind = "sequential"

	// StepKindParallel — шаг, который оркестратор разворачивает в N параллельных tasks.
	StepKindParallel StepKind = "parallel"

	// StepKindReduce — агрегирующий шаг, читает результаты предыдущих.
	StepKindReduce StepKind = "reduce"

	// StepKindMapReduce — составной вид; на проводе раскладывается на parallel + reduce.
	StepKindMapReduce StepKind = "mapreduce"
)

// IsValid проверяет, что вид шага известен.
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindSequential, StepKindParallel, StepKindReduce, StepKindMapReduce:
		return true
	default:
		return false
	}
}

// FailureStrategy — поведение workflow при падении шага.
type FailureStrategy string

const (
	// FailureStrategyFailFast — зависимые от упавшего шаги пропускаются (SKIPPED).
	FailureStrategyFailFast FailureStrategy = "fail_fast"

	// FailureStrategyContinue — зависимые шаги всё равно выполняются,
	// недостающие входы считаются отсутствующим состоянием.
	FailureStrategyContinue FailureStrategy = "continue"
)

// ExecutionMode — режим запуска агентов шага.
type ExecutionMode string

const (
	ExecutionModeStandard ExecutionMode = "standard"
	ExecutionModePooled   ExecutionMode = "pooled"
)

// ResourceLimits — лимиты ресурсов для агента.
// Передаются оркестратору, локально не применяются.
type ResourceLimits struct {
	// CPULimit — лимит CPU в наноядрах (500000000 = 0.5 CPU).
	CPULimit int64 `json:"cpu_limit,omitempty" validate:"gte=0"`

	// MemoryLimit — лимит памяти в байтах.
	MemoryLimit int64 `json:"memory_limit,omitempty" validate:"gte=0"`
}

// PoolConfig — конфигурация пула агентов для pooled режима.
type PoolConfig struct {
	MinSize      int      `json:"min_size" validate:"gte=0"`
	MaxSize      int      `json:"max_size" validate:"gte=1,gtefield=MinSize"`
	IdleTimeout  Duration `json:"idle_timeout,omitempty"`
	MaxAgentUses int      `json:"max_agent_uses,omitempty" validate:"gte=0"`
	WarmUp       bool     `json:"warm_up,omitempty"`
}

// DefaultPoolConfig возвращает конфигурацию пула по умолчанию.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:      1,
		MaxSize:      10,
		IdleTimeout:  Duration(5 * time.Minute),
		MaxAgentUses: 100,
	}
}

// MapConfig — настройки map-шага: откуда брать элементы и как их называть.
type MapConfig struct {
	// InputPath — ключ состояния со списком элементов (например, "urls").
	InputPath string `json:"input_path,omitempty"`

	// ItemAlias — имя поля во входе task, куда оркестратор кладёт текущий элемент.
	ItemAlias string `json:"item_alias,omitempty"`

	// MaxConcurrency — ограничение параллелизма на стороне оркестратора.
	MaxConcurrency int `json:"max_concurrency,omitempty" validate:"gte=0"`

	// ErrorHandling — "continue_on_error" или "fail_fast".
	ErrorHandling string `json:"error_handling,omitempty" validate:"omitempty,oneof=continue_on_error fail_fast"`
}

// StepConfig — конфигурация шага.
type StepConfig struct {
	// Image — образ агента, выполняющего шаг.
	Image string `json:"image"`

	// Command — переопределение команды контейнера.
	Command []string `json:"command,omitempty"`

	// EnvVars — переменные окружения агента.
	EnvVars map[string]string `json:"env_vars,omitempty"`

	// MaxWorkers — потолок числа параллельных воркеров (для parallel).
	MaxWorkers int `json:"max_workers,omitempty" validate:"gte=0"`

	// Dynamic — число воркеров определяется при запуске по размеру входа.
	Dynamic bool `json:"dynamic,omitempty"`

	// Timeout — таймаут шага.
	Timeout Duration `json:"timeout,omitempty"`

	RetryPolicy    *RetryPolicy    `json:"retry_policy,omitempty"`
	ResourceLimits *ResourceLimits `json:"resource_limits,omitempty"`

	// ExecutionMode — "standard" или "pooled".
	ExecutionMode ExecutionMode `json:"execution_mode,omitempty" validate:"omitempty,oneof=standard pooled"`

	// PoolConfig — допустим только в pooled режиме.
	PoolConfig *PoolConfig `json:"pool_config,omitempty"`

	// MapConfig — настройки map-шага.
	MapConfig *MapConfig `json:"map_config,omitempty"`
}

// WorkflowConfig — конфигурация уровня workflow.
type WorkflowConfig struct {
	MaxParallel     int             `json:"max_parallel,omitempty" validate:"gte=0"`
	Timeout         Duration        `json:"timeout,omitempty"`
	RetryPolicy     *RetryPolicy    `json:"retry_policy,omitempty"`
	FailureStrategy FailureStrategy `json:"failure_strategy,omitempty" validate:"omitempty,oneof=fail_fast continue"`
	ResourceLimits  *ResourceLimits `json:"resource_limits,omitempty"`

	// CleanupPolicy — когда удалять агентов: "always", "on_success", "never".
	CleanupPolicy string `json:"cleanup_policy,omitempty" validate:"omitempty,oneof=always on_success never"`
}

// EffectiveFailureStrategy возвращает стратегию с учётом значения по умолчанию.
func (c WorkflowConfig) EffectiveFailureStrategy() FailureStrategy {
	if c.FailureStrategy == "" {
		return FailureStrategyFailFast
	}
	return c.FailureStrategy
}

// Step — узел графа workflow, как его видит оркестратор.
type Step struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      StepKind       `json:"type"`
	Status    StepStatus     `json:"status,omitempty"`
	Config    StepConfig     `json:"config"`
	DependsOn []string       `json:"depends_on,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — текст ошибки при падении шага.
	Error string `json:"error,omitempty"`

	// Results — результат шага, если оркестратор его сохранил.
	Results Value `json:"results,omitempty"`
}

// Workflow — workflow на стороне оркестратора.
//
// Клиент держит только кэшированное зеркало; шаги меняет только оркестратор.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Status      WorkflowStatus    `json:"status"`
	Config      WorkflowConfig    `json:"config"`
	Steps       []Step            `json:"steps,omitempty"`
	State       map[string]Value  `json:"state,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepByID возвращает шаг по ID или nil.
func (w *Workflow) StepByID(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// StepStatuses возвращает карту stepID → статус.
func (w *Workflow) StepStatuses() map[string]StepStatus {
	statuses := make(map[string]StepStatus, len(w.Steps))
	for _, step := range w.Steps {
		status := step.Status
		if status == "" {
			status = StepStatusPending
		}
		statuses[step.ID] = status
	}
	return statuses
}

// Duration возвращает продолжительность выполнения workflow.
// Для незавершённого workflow считает до now.
func (w *Workflow) Duration(now time.Time) time.Duration {
	start := w.CreatedAt
	if w.StartedAt != nil {
		start = *w.StartedAt
	}
	end := now
	if w.CompletedAt != nil {
		end = *w.CompletedAt
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// CreateWorkflowRequest — payload для POST /workflows.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Config      WorkflowConfig `json:"config"`
	Steps       []Step         `json:"steps,omitempty"`
}

// UpdateStateRequest — payload для PUT /workflows/{id}/state.
type UpdateStateRequest struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}
