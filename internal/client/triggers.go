package client

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Flowkit/internal/domain"
)

// cronParser — парсер cron-выражений (5 полей, как у оркестратора).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun вычисляет следующее время срабатывания после from.
// Пустой или неизвестный timezone — UTC.
func NextRun(expr, timezone string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	return schedule.Next(from.In(loc)).UTC(), nil
}

// --- Triggers ---

// CreateTrigger создаёт триггер workflow.
func (c *Client) CreateTrigger(ctx context.Context, workflowID string, req domain.CreateTriggerRequest) (*domain.Trigger, error) {
	if !req.Type.IsValid() {
		return nil, &WorkflowError{WorkflowID: workflowID, Message: fmt.Sprintf("unknown trigger type %q", req.Type)}
	}
	if req.Type == domain.TriggerTypeSchedule {
		if err := ValidateCronExpr(req.Config.CronExpression); err != nil {
			return nil, &WorkflowError{WorkflowID: workflowID, Message: "invalid schedule", Err: err}
		}
	}

	var trigger domain.Trigger
	if err := c.post(ctx, "/workflows/"+escape(workflowID)+"/triggers", req, &trigger); err != nil {
		return nil, err
	}
	return &trigger, nil
}

// ListTriggers возвращает триггеры workflow.
func (c *Client) ListTriggers(ctx context.Context, workflowID string) ([]domain.Trigger, error) {
	var triggers []domain.Trigger
	if err := c.get(ctx, "/workflows/"+escape(workflowID)+"/triggers", nil, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}

// EnableTrigger включает триггер.
func (c *Client) EnableTrigger(ctx context.Context, triggerID string) error {
	return c.put(ctx, "/triggers/"+escape(triggerID)+"/enable", nil, nil)
}

// DisableTrigger выключает триггер.
func (c *Client) DisableTrigger(ctx context.Context, triggerID string) error {
	return c.put(ctx, "/triggers/"+escape(triggerID)+"/disable", nil, nil)
}

// TriggerWorkflow запускает workflow вручную.
func (c *Client) TriggerWorkflow(ctx context.Context, workflowID string, input map[string]domain.Value) (map[string]string, error) {
	var body any
	if len(input) > 0 {
		body = domain.TriggerWorkflowRequest{InputData: input}
	}

	var out map[string]string
	if err := c.post(ctx, "/workflows/"+escape(workflowID)+"/trigger", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ScheduleWorkflow создаёт включённый schedule-триггер.
// Cron-выражение проверяется до отправки запроса.
func (c *Client) ScheduleWorkflow(ctx context.Context, workflowID, cronExpr, timezone string, input map[string]domain.Value) (*domain.Trigger, error) {
	return c.CreateTrigger(ctx, workflowID, domain.CreateTriggerRequest{
		Type: domain.TriggerTypeSchedule,
		Config: domain.TriggerConfig{
			CronExpression: cronExpr,
			Timezone:       timezone,
			InputData:      input,
		},
		Enabled: true,
	})
}
