package flowtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Flowkit/internal/client"
	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/engine"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// DefaultWorkflowID — ID workflow локального прогона.
const DefaultWorkflowID = "test-workflow"

var (
	// ErrNoStepFunc — у шага нет локальной реализации.
	ErrNoStepFunc = errors.New("no local implementation for step")

	// ErrUnknownStep — шага нет в объявлении workflow.
	ErrUnknownStep = errors.New("step is not declared in workflow")
)

// StepFunc — локальная реализация шага. Непустой результат
// записывается в step_{name}_results.
type StepFunc func(ctx context.Context, sc *client.StepContext) (any, error)

// Report — итог локального прогона.
type Report struct {
	WorkflowID string
	Status     domain.WorkflowStatus

	// Executed — шаги в порядке запуска, включая упавшие.
	Executed []string
	Steps    map[string]domain.StepStatus
	Results  map[string]domain.Value
	Errors   map[string]string

	// State — скалярные ключи состояния после прогона.
	State map[string]domain.Value
}

// Runner выполняет объявление workflow в текущем процессе.
//
// Шаги идут по одному в порядке DAG: из готовых первым запускается
// объявленный раньше. Состояние — MemoryState, агенты — AgentAPI.
// Стратегия fail_fast останавливает прогон на первой ошибке, continue
// пропускает только зависимые от упавшего шаги.
type Runner struct {
	def    *engine.Definition
	dag    *engine.DAG
	steps  map[string]StepFunc
	state  *MemoryState
	agents *AgentAPI
	client *client.Client
	logger *slog.Logger
	err    error
}

// Option настраивает Runner.
type Option func(*runnerConfig)

type runnerConfig struct {
	workflowID string
	logger     *slog.Logger
}

// WithWorkflowID задаёт ID workflow прогона.
func WithWorkflowID(id string) Option {
	return func(c *runnerConfig) { c.workflowID = id }
}

// WithLogger задаёт логгер прогона.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runnerConfig) { c.logger = logger }
}

// NewRunner строит DAG объявления и поднимает фейковый API агентов.
// Runner нужно закрыть через Close.
func NewRunner(def *engine.Definition, opts ...Option) (*Runner, error) {
	cfg := runnerConfig{workflowID: DefaultWorkflowID}
	for _, opt := range opts {
		opt(&cfg)
	}

	dag, err := engine.BuildDAG(def)
	if err != nil {
		return nil, fmt.Errorf("build dag: %w", err)
	}

	logger := telemetry.WithWorkflowID(telemetry.OrDefault(cfg.logger), cfg.workflowID)
	agents := NewAgentAPI()
	return &Runner{
		def:    def,
		dag:    dag,
		steps:  make(map[string]StepFunc),
		state:  NewMemoryState(cfg.workflowID),
		agents: agents,
		client: client.New(agents.URL(), client.WithLogger(logger)),
		logger: logger,
	}, nil
}

// Step регистрирует реализацию шага. Ошибка регистрации
// возвращается из Run.
func (r *Runner) Step(name string, fn StepFunc) *Runner {
	if r.dag.GetNode(name) == nil {
		r.err = errors.Join(r.err, fmt.Errorf("%s: %w", name, ErrUnknownStep))
		return r
	}
	r.steps[name] = fn
	return r
}

// State возвращает состояние прогона.
func (r *Runner) State() *MemoryState { return r.state }

// Agents возвращает фейковый API агентов.
func (r *Runner) Agents() *AgentAPI { return r.agents }

// Close останавливает фейковый API агентов.
func (r *Runner) Close() { r.agents.Close() }

// Run записывает inputs в состояние и выполняет шаги.
// Отчёт возвращается и при ошибке шага.
func (r *Runner) Run(ctx context.Context, inputs map[string]any) (*Report, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := r.state.Seed(inputs); err != nil {
		return nil, err
	}

	report := &Report{
		WorkflowID: r.state.WorkflowID(),
		Steps:      make(map[string]domain.StepStatus, r.dag.Size()),
		Results:    make(map[string]domain.Value),
		Errors:     make(map[string]string),
	}

	wctx := client.NewWorkflowContext(r.client, r.state)
	failFast := r.def.Config.EffectiveFailureStrategy() == domain.FailureStrategyFailFast
	completed := make(map[string]bool)
	finished := make(map[string]bool)
	var firstErr error

	for firstErr == nil || !failFast {
		if err := ctx.Err(); err != nil {
			firstErr = err
			break
		}
		ready := r.dag.GetReadyNodes(completed, finished)
		if len(ready) == 0 {
			break
		}

		id := ready[0].ID
		report.Executed = append(report.Executed, id)
		result, err := r.runStep(ctx, id)
		finished[id] = true

		if err != nil {
			report.Steps[id] = domain.StepStatusFailed
			report.Errors[id] = err.Error()
			if markErr := wctx.MarkStepFailed(ctx, id, err.Error()); markErr != nil {
				r.logger.Warn("failed to record step failure", "step_id", id, "error", markErr)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		completed[id] = true
		report.Steps[id] = domain.StepStatusCompleted
		if result != nil {
			report.Results[id] = result
		}
		if err := wctx.MarkStepCompleted(ctx, id); err != nil {
			r.logger.Warn("failed to record step completion", "step_id", id, "error", err)
		}
	}

	for _, id := range r.dag.OrderIDs() {
		if _, ok := report.Steps[id]; !ok {
			report.Steps[id] = domain.StepStatusSkipped
		}
	}
	report.State = r.state.Snapshot()

	if firstErr != nil {
		report.Status = domain.WorkflowStatusFailed
		r.logger.Info("local run failed", "executed", len(report.Executed), "error", firstErr)
		return report, &client.WorkflowError{WorkflowID: report.WorkflowID, Message: "local run failed", Err: firstErr}
	}
	report.Status = domain.WorkflowStatusCompleted
	r.logger.Info("local run completed", "executed", len(report.Executed))
	return report, nil
}

// RunStep выполняет один шаг на текущем состоянии без проверки
// зависимостей.
func (r *Runner) RunStep(ctx context.Context, name string) (domain.Value, error) {
	if r.dag.GetNode(name) == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownStep)
	}
	return r.runStep(ctx, name)
}

func (r *Runner) runStep(ctx context.Context, id string) (domain.Value, error) {
	fn, ok := r.steps[id]
	if !ok {
		return nil, &client.StepError{StepID: id, Message: "not runnable", Err: ErrNoStepFunc}
	}

	logger := telemetry.WithStepID(r.logger, id)
	ctx = telemetry.WithLogger(ctx, logger)

	sc := client.NewStepContext(r.client, r.state, id)
	defer sc.Cleanup(ctx)

	logger.Debug("step started")
	out, err := fn(ctx, sc)
	if err != nil {
		return nil, &client.StepError{StepID: id, Message: "step failed", Err: err}
	}
	if out == nil {
		return nil, nil
	}

	value, err := domain.NewValue(out)
	if err != nil {
		return nil, &client.StepError{StepID: id, Message: "encode result", Err: err}
	}
	if err := sc.SaveResults(ctx, value); err != nil {
		return nil, &client.StepError{StepID: id, Message: "save result", Err: err}
	}
	logger.Debug("step completed")
	return value, nil
}
