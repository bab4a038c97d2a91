package client

import (
	"context"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// DefaultPollInterval — период опроса статуса workflow.
const DefaultPollInterval = 2 * time.Second

// Result — итог выполнения workflow.
type Result struct {
	Status     domain.WorkflowStatus   `json:"status"`
	WorkflowID string                  `json:"workflow_id"`
	State      map[string]domain.Value `json:"state"`
	Duration   time.Duration           `json:"duration"`
}

// MonitorFunc вызывается на каждом шаге Monitor.
type MonitorFunc func(wf *domain.Workflow, metrics *domain.WorkflowMetrics)

// Execution — handle запущенного workflow.
//
// Хранит последнее наблюдённое зеркало workflow. Статус меняет
// только оркестратор; Execution его лишь перечитывает.
type Execution struct {
	workflow *domain.Workflow
	client   *Client
}

// ID возвращает ID workflow.
func (e *Execution) ID() string {
	return e.workflow.ID
}

// Status возвращает последний наблюдённый статус.
func (e *Execution) Status() domain.WorkflowStatus {
	return e.workflow.Status
}

// Workflow возвращает последнее наблюдённое зеркало workflow.
func (e *Execution) Workflow() *domain.Workflow {
	return e.workflow
}

// Refresh перечитывает workflow.
func (e *Execution) Refresh(ctx context.Context) error {
	wf, err := e.client.GetWorkflow(ctx, e.workflow.ID)
	if err != nil {
		return err
	}
	telemetry.ClientPolls.Inc()

	if prev := e.workflow.Status; prev != "" && !prev.CanTransitionTo(wf.Status) {
		e.client.logger.Warn("workflow status regressed",
			"workflow_id", wf.ID, "from", prev, "to", wf.Status)
	}
	e.workflow = wf
	return nil
}

// WaitForCompletion опрашивает workflow каждые 2 секунды, пока он не
// перейдёт в терминальный статус.
//
// timeout == 0 — ждать без ограничения (до отмены ctx).
// По истечении timeout возвращается *TimeoutError.
func (e *Execution) WaitForCompletion(ctx context.Context, timeout time.Duration) (*Result, error) {
	clock := e.client.clock
	deadline := clock.Now().Add(timeout)

	for {
		if err := e.Refresh(ctx); err != nil {
			return nil, err
		}

		if e.workflow.Status.IsTerminal() {
			return &Result{
				Status:     e.workflow.Status,
				WorkflowID: e.workflow.ID,
				State:      e.workflow.State,
				Duration:   e.workflow.Duration(clock.Now()),
			}, nil
		}

		wait := DefaultPollInterval
		if timeout > 0 {
			remaining := deadline.Sub(clock.Now())
			if remaining <= 0 {
				return nil, &TimeoutError{What: "workflow " + e.workflow.ID, Timeout: timeout}
			}
			if remaining < wait {
				wait = remaining
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clock.After(wait):
		}
	}
}

// Monitor опрашивает workflow и метрики с периодом interval,
// вызывая callback на каждом шаге. Возвращает последний снимок метрик
// после перехода workflow в терминальный статус.
func (e *Execution) Monitor(ctx context.Context, callback MonitorFunc, interval time.Duration) (*domain.WorkflowMetrics, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		if err := e.Refresh(ctx); err != nil {
			return nil, err
		}

		metrics, err := e.Metrics(ctx)
		if err != nil {
			return nil, err
		}

		if callback != nil {
			callback(e.workflow, metrics)
		}

		if e.workflow.Status.IsTerminal() {
			return metrics, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.client.clock.After(interval):
		}
	}
}

// Jobs возвращает jobs workflow.
func (e *Execution) Jobs(ctx context.Context) ([]domain.Job, error) {
	return e.client.GetWorkflowJobs(ctx, e.workflow.ID)
}

// State перечитывает workflow и возвращает его состояние.
func (e *Execution) State(ctx context.Context) (map[string]domain.Value, error) {
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e.workflow.State, nil
}

// Metrics возвращает метрики выполнения.
func (e *Execution) Metrics(ctx context.Context) (*domain.WorkflowMetrics, error) {
	return e.client.GetWorkflowMetrics(ctx, e.workflow.ID)
}

// Context возвращает контекст workflow с состоянием через HTTP API.
func (e *Execution) Context() *WorkflowContext {
	return NewWorkflowContext(e.client, NewHTTPState(e.client, e.workflow.ID))
}
