package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
)

// agentPollInterval — период опроса статуса агента в DeployedAgent.Wait.
const agentPollInterval = time.Second

// Ключи состояния, которые ведёт WorkflowContext.
const (
	KeyStepsCompleted = "steps_completed"
	KeyStepsFailed    = "steps_failed"
	KeyStepErrors     = "step_errors"
)

// ResultsKey возвращает ключ состояния с результатами шага.
func ResultsKey(stepID string) string {
	return fmt.Sprintf("step_%s_results", stepID)
}

// AgentResult — итог работы агента.
type AgentResult struct {
	Status  domain.StepStatus `json:"status"`
	AgentID string            `json:"agent_id"`
}

// DeployedAgent — агент, развёрнутый из контекста шага.
type DeployedAgent struct {
	agent  *domain.Agent
	client *Client
}

// ID возвращает ID агента.
func (a *DeployedAgent) ID() string { return a.agent.ID }

// Name возвращает имя агента.
func (a *DeployedAgent) Name() string { return a.agent.Name }

// Agent возвращает последнее наблюдённое состояние агента.
func (a *DeployedAgent) Agent() *domain.Agent { return a.agent }

// Wait опрашивает агента раз в секунду, пока он не остановится.
// timeout == 0 — без ограничения.
func (a *DeployedAgent) Wait(ctx context.Context, timeout time.Duration) (*AgentResult, error) {
	clock := a.client.clock
	deadline := clock.Now().Add(timeout)

	for {
		agent, err := a.client.GetAgent(ctx, a.agent.ID)
		if err != nil {
			return nil, err
		}
		a.agent = agent

		if agent.Status.IsFinished() {
			status := domain.StepStatusCompleted
			if agent.Status == domain.AgentStatusFailed {
				status = domain.StepStatusFailed
			}
			return &AgentResult{Status: status, AgentID: agent.ID}, nil
		}

		if timeout > 0 && !clock.Now().Before(deadline) {
			return nil, &TimeoutError{What: "agent " + a.agent.ID, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clock.After(agentPollInterval):
		}
	}
}

// Stop останавливает агента.
func (a *DeployedAgent) Stop(ctx context.Context) error {
	return a.client.StopAgent(ctx, a.agent.ID)
}

// Logs возвращает логи агента.
func (a *DeployedAgent) Logs(ctx context.Context, follow bool) (string, error) {
	return a.client.GetAgentLogs(ctx, a.agent.ID, follow)
}

// StepContext — контекст выполнения шага.
//
// Агенты, развёрнутые через DeployAgent, помечаются ID workflow и шага
// и останавливаются в Cleanup.
type StepContext struct {
	workflowID string
	stepID     string
	client     *Client
	state      *StateProxy

	mu     sync.Mutex
	agents []*DeployedAgent
}

// NewStepContext создаёт контекст шага.
func NewStepContext(c *Client, backend StateBackend, stepID string) *StepContext {
	return &StepContext{
		workflowID: backend.WorkflowID(),
		stepID:     stepID,
		client:     c,
		state:      NewStateProxy(backend),
	}
}

// WorkflowID возвращает ID workflow.
func (s *StepContext) WorkflowID() string { return s.workflowID }

// StepID возвращает ID шага.
func (s *StepContext) StepID() string { return s.stepID }

// State возвращает прокси состояния workflow.
func (s *StepContext) State() *StateProxy { return s.state }

// DeployAgent разворачивает и запускает агента.
// В окружение агента добавляются WORKFLOW_ID и STEP_ID.
// Агент учитывается в Cleanup сразу после создания, даже если запуск не удался.
func (s *StepContext) DeployAgent(ctx context.Context, req domain.DeployAgentRequest) (*DeployedAgent, error) {
	req.WorkflowID = s.workflowID
	req.StepID = s.stepID

	agent, err := s.client.DeployAgent(ctx, req)
	if err != nil {
		return nil, &StepError{StepID: s.stepID, Message: "deploy agent " + req.Name, Err: err}
	}

	deployed := &DeployedAgent{agent: agent, client: s.client}
	s.mu.Lock()
	s.agents = append(s.agents, deployed)
	s.mu.Unlock()

	if err := s.client.StartAgent(ctx, agent.ID); err != nil {
		return nil, &StepError{StepID: s.stepID, Message: "start agent " + agent.ID, Err: err}
	}

	s.client.logger.Info("agent deployed",
		"workflow_id", s.workflowID, "step_id", s.stepID, "agent_id", agent.ID)
	return deployed, nil
}

// Agents возвращает развёрнутых агентов.
func (s *StepContext) Agents() []*DeployedAgent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*DeployedAgent(nil), s.agents...)
}

// PreviousResults читает результаты шага stepName.
// Отсутствующие результаты — nil без ошибки.
func (s *StepContext) PreviousResults(ctx context.Context, stepName string) (domain.Value, error) {
	return s.state.GetDefault(ctx, ResultsKey(stepName), nil)
}

// SaveResults записывает результаты текущего шага.
func (s *StepContext) SaveResults(ctx context.Context, results any) error {
	return s.state.Set(ctx, ResultsKey(s.stepID), results)
}

// Cleanup останавливает развёрнутых агентов.
// Ошибки остановки логируются и не возвращаются.
func (s *StepContext) Cleanup(ctx context.Context) {
	for _, agent := range s.Agents() {
		if err := agent.Stop(ctx); err != nil {
			s.client.logger.Warn("failed to stop agent",
				"workflow_id", s.workflowID, "step_id", s.stepID,
				"agent_id", agent.ID(), "error", err)
		}
	}
}

// WorkflowContext — контекст уровня workflow.
type WorkflowContext struct {
	*StepContext

	mu             sync.Mutex
	stepsCompleted int
	stepsFailed    int
}

// NewWorkflowContext создаёт контекст workflow (шаг "workflow").
func NewWorkflowContext(c *Client, backend StateBackend) *WorkflowContext {
	return &WorkflowContext{StepContext: NewStepContext(c, backend, "workflow")}
}

// stepErrorRecord — запись в списке step_errors.
type stepErrorRecord struct {
	StepID string `json:"step_id"`
	Error  string `json:"error"`
}

// MarkStepCompleted увеличивает счётчик завершённых шагов.
func (w *WorkflowContext) MarkStepCompleted(ctx context.Context, stepID string) error {
	w.mu.Lock()
	w.stepsCompleted++
	w.mu.Unlock()

	if _, err := w.state.Increment(ctx, KeyStepsCompleted, 1); err != nil {
		return fmt.Errorf("mark step %s completed: %w", stepID, err)
	}
	return nil
}

// MarkStepFailed увеличивает счётчик упавших шагов и добавляет
// запись в step_errors.
func (w *WorkflowContext) MarkStepFailed(ctx context.Context, stepID, message string) error {
	w.mu.Lock()
	w.stepsFailed++
	w.mu.Unlock()

	if _, err := w.state.Increment(ctx, KeyStepsFailed, 1); err != nil {
		return fmt.Errorf("mark step %s failed: %w", stepID, err)
	}
	if err := w.state.Append(ctx, KeyStepErrors, stepErrorRecord{StepID: stepID, Error: message}); err != nil {
		return fmt.Errorf("mark step %s failed: %w", stepID, err)
	}
	return nil
}

// Counts возвращает локальные счётчики шагов этого контекста.
func (w *WorkflowContext) Counts() (completed, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepsCompleted, w.stepsFailed
}
