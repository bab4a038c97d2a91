package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/engine"
)

// --- Workflows ---

// CreateWorkflow создаёт workflow.
func (c *Client) CreateWorkflow(ctx context.Context, req *domain.CreateWorkflowRequest) (*domain.Workflow, error) {
	if req == nil || req.Name == "" {
		return nil, &WorkflowError{Message: "workflow name is required"}
	}
	var wf domain.Workflow
	if err := c.post(ctx, "/workflows", req, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	var wf domain.Workflow
	if err := c.get(ctx, "/workflows/"+escape(id), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows возвращает workflows. Пустой status — без фильтра.
func (c *Client) ListWorkflows(ctx context.Context, status domain.WorkflowStatus) ([]domain.Workflow, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", string(status))
	}

	var wfs []domain.Workflow
	if err := c.get(ctx, "/workflows", params, &wfs); err != nil {
		return nil, err
	}
	return wfs, nil
}

// StartWorkflow запускает выполнение workflow.
func (c *Client) StartWorkflow(ctx context.Context, id string) (map[string]domain.Value, error) {
	var out map[string]domain.Value
	if err := c.post(ctx, "/workflows/"+escape(id)+"/start", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkflowJobs возвращает jobs (запуски агентов) workflow.
func (c *Client) GetWorkflowJobs(ctx context.Context, id string) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := c.get(ctx, "/workflows/"+escape(id)+"/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetWorkflowMetrics возвращает метрики выполнения workflow.
func (c *Client) GetWorkflowMetrics(ctx context.Context, id string) (*domain.WorkflowMetrics, error) {
	var m domain.WorkflowMetrics
	if err := c.get(ctx, "/workflows/"+escape(id)+"/metrics", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// workflowHistory — data ответа GET /workflows/metrics/history.
type workflowHistory struct {
	Duration  string                   `json:"duration"`
	Workflows []domain.WorkflowMetrics `json:"workflows"`
}

// GetWorkflowHistory возвращает метрики workflows за последнее окно window.
// window == 0 — окно по умолчанию оркестратора (1h, не больше 7 суток).
func (c *Client) GetWorkflowHistory(ctx context.Context, window time.Duration) ([]domain.WorkflowMetrics, error) {
	var h workflowHistory
	if err := c.get(ctx, "/workflows/metrics/history", windowParams(window), &h); err != nil {
		return nil, err
	}
	return h.Workflows, nil
}

// GetAggregateMetrics возвращает сводные метрики за окно window.
func (c *Client) GetAggregateMetrics(ctx context.Context, window time.Duration) (*domain.AggregateMetrics, error) {
	var m domain.AggregateMetrics
	if err := c.get(ctx, "/workflows/metrics/aggregate", windowParams(window), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func windowParams(window time.Duration) url.Values {
	params := url.Values{}
	if window > 0 {
		params.Set("duration", window.String())
	}
	return params
}

// --- State ---

// GetWorkflowState возвращает значение одного ключа состояния.
// Отсутствующий ключ — domain.ErrKeyNotFound.
func (c *Client) GetWorkflowState(ctx context.Context, id, key string) (domain.Value, error) {
	params := url.Values{}
	params.Set("key", key)

	var v domain.Value
	err := c.get(ctx, "/workflows/"+escape(id)+"/state", params, &v)
	if err != nil {
		if IsNotFound(err) {
			return nil, &StateError{Op: "get", Key: key, Err: domain.ErrKeyNotFound}
		}
		return nil, err
	}
	if v.IsNull() {
		return nil, &StateError{Op: "get", Key: key, Err: domain.ErrKeyNotFound}
	}
	return v, nil
}

// GetWorkflowStateAll возвращает всё состояние workflow.
func (c *Client) GetWorkflowStateAll(ctx context.Context, id string) (map[string]domain.Value, error) {
	var state map[string]domain.Value
	if err := c.get(ctx, "/workflows/"+escape(id)+"/state", nil, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = map[string]domain.Value{}
	}
	return state, nil
}

// UpdateWorkflowState записывает значение ключа состояния.
func (c *Client) UpdateWorkflowState(ctx context.Context, id, key string, value domain.Value) error {
	req := domain.UpdateStateRequest{Key: key, Value: value}
	return c.put(ctx, "/workflows/"+escape(id)+"/state", req, nil)
}

// --- High-level execution ---

// RunWorkflow компилирует объявление, создаёт workflow, записывает
// входные данные в состояние и запускает его.
func (c *Client) RunWorkflow(ctx context.Context, def *engine.Definition, inputs map[string]domain.Value) (*Execution, error) {
	req, err := engine.Compile(def)
	if err != nil {
		return nil, &WorkflowError{Message: "invalid workflow definition", Err: err}
	}

	wf, err := c.CreateWorkflow(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	for key, value := range inputs {
		if err := c.UpdateWorkflowState(ctx, wf.ID, key, value); err != nil {
			return nil, fmt.Errorf("seed state %s: %w", key, err)
		}
	}

	if _, err := c.StartWorkflow(ctx, wf.ID); err != nil {
		return nil, fmt.Errorf("start workflow %s: %w", wf.ID, err)
	}

	c.logger.Info("workflow started", "workflow_id", wf.ID, "name", wf.Name, "steps", len(req.Steps))
	return c.Execution(wf), nil
}

// RunMapReduce объявляет workflow из пары map → reduce и запускает его.
func (c *Client) RunMapReduce(ctx context.Context, name string, spec engine.MapReduceSpec, inputs map[string]domain.Value) (*Execution, error) {
	def, err := engine.NewWorkflow(name).MapReduce(spec).Build()
	if err != nil {
		return nil, &WorkflowError{Message: "invalid mapreduce definition", Err: err}
	}
	return c.RunWorkflow(ctx, def, inputs)
}

// Execution возвращает handle для уже существующего workflow.
func (c *Client) Execution(wf *domain.Workflow) *Execution {
	return &Execution{workflow: wf, client: c}
}

// Attach загружает workflow по ID и возвращает handle.
func (c *Client) Attach(ctx context.Context, id string) (*Execution, error) {
	wf, err := c.GetWorkflow(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &WorkflowError{WorkflowID: id, Message: "not found", Err: err}
		}
		return nil, err
	}
	return c.Execution(wf), nil
}

// isStateMissing — ключ состояния отсутствует.
func isStateMissing(err error) bool {
	return errors.Is(err, domain.ErrKeyNotFound)
}
