package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shaiso/Flowkit/internal/domain"
)

// --- Agents ---

// DeployAgent создаёт агента. Агент не запускается до StartAgent.
// WorkflowID и StepID запроса попадают в окружение агента.
func (c *Client) DeployAgent(ctx context.Context, req domain.DeployAgentRequest) (*domain.Agent, error) {
	var agent domain.Agent
	if err := c.post(ctx, "/agents", req.Tagged(), &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// StartAgent запускает агента.
func (c *Client) StartAgent(ctx context.Context, id string) error {
	return c.post(ctx, "/agents/"+escape(id)+"/start", nil, nil)
}

// StopAgent останавливает агента.
func (c *Client) StopAgent(ctx context.Context, id string) error {
	return c.post(ctx, "/agents/"+escape(id)+"/stop", nil, nil)
}

// GetAgent возвращает агента по ID.
func (c *Client) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	var agent domain.Agent
	if err := c.get(ctx, "/agents/"+escape(id), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetAgentLogs возвращает логи агента.
func (c *Client) GetAgentLogs(ctx context.Context, id string, follow bool) (string, error) {
	params := url.Values{}
	params.Set("follow", strconv.FormatBool(follow))

	var logs string
	if err := c.get(ctx, "/agents/"+escape(id)+"/logs", params, &logs); err != nil {
		return "", err
	}
	return logs, nil
}
