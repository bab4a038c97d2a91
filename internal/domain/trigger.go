package domain

import "time"

// TriggerType — тип триггера запуска workflow.
type TriggerType string

const (
	// TriggerTypeSchedule — запуск по cron-выражению.
	TriggerTypeSchedule TriggerType = "schedule"

	// TriggerTypeEvent — запуск по событию.
	TriggerTypeEvent TriggerType = "event"

	// TriggerTypeManual — ручной запуск.
	TriggerTypeManual TriggerType = "manual"

	// TriggerTypeWebhook — запуск по входящему webhook.
	TriggerTypeWebhook TriggerType = "webhook"
)

// IsValid проверяет, что тип триггера известен.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerTypeSchedule, TriggerTypeEvent, TriggerTypeManual, TriggerTypeWebhook:
		return true
	default:
		return false
	}
}

// TriggerConfig — настройки триггера.
//
// Набор заполненных полей зависит от типа:
//   - schedule: CronExpression, Timezone
//   - event:    EventType, EventFilter
//   - webhook:  WebhookPath, WebhookSecret
type TriggerConfig struct {
	// CronExpression — cron-выражение (5 полей).
	// Примеры:
	//   "0 9 * * *"     — каждый день в 9:00
	//   "*/5 * * * *"   — каждые 5 минут
	CronExpression string `json:"cron_expression,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию UTC.
	Timezone string `json:"timezone,omitempty"`

	EventType   string            `json:"event_type,omitempty"`
	EventFilter map[string]string `json:"event_filter,omitempty"`

	WebhookPath   string `json:"webhook_path,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// SkipIfRunning — не запускать, если предыдущий запуск ещё идёт.
	SkipIfRunning bool `json:"skip_if_running,omitempty"`

	// CatchUp — догонять пропущенные запуски.
	CatchUp bool `json:"catch_up,omitempty"`

	// InputData — входные данные, передаваемые в каждый запуск.
	InputData map[string]Value `json:"input_data,omitempty"`
}

// Trigger — триггер запуска workflow.
type Trigger struct {
	ID         string        `json:"id"`
	WorkflowID string        `json:"workflow_id"`
	Type       TriggerType   `json:"type"`
	Config     TriggerConfig `json:"config"`
	Enabled    bool          `json:"enabled"`
	LastRunAt  *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time    `json:"next_run_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// CreateTriggerRequest — payload для POST /workflows/{id}/triggers.
type CreateTriggerRequest struct {
	Type    TriggerType   `json:"type"`
	Config  TriggerConfig `json:"config"`
	Enabled bool          `json:"enabled"`
}

// TriggerWorkflowRequest — payload для POST /workflows/{id}/trigger.
type TriggerWorkflowRequest struct {
	InputData map[string]Value `json:"input_data,omitempty"`
}
