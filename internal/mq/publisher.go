package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowkit/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeTaskOutcome MessageType = "task.outcome"
)

// Message — конверт публикуемого сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// TaskOutcomePayload — копия исхода task, записанного в state store.
type TaskOutcomePayload struct {
	TaskID     string         `json:"task_id"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	StepID     string         `json:"step_id,omitempty"`
	Type       string         `json:"type"`
	Outcome    domain.Outcome `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Publisher публикует сообщения в брокер.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger, now: time.Now}
}

// NewMessage упаковывает payload в конверт с новым ID.
func NewMessage(msgType MessageType, payload any, at time.Time) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   body,
		Timestamp: at.UTC(),
	}, nil
}

// Publish отправляет msg в exchange с ключом routingKey. Сообщения persistent.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("message published",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type)
		return nil
	})
}

// PublishTaskOutcome публикует исход task в flowkit.tasks
// с ключом task.completed или task.error.
func (p *Publisher) PublishTaskOutcome(ctx context.Context, payload TaskOutcomePayload) error {
	msg, err := NewMessage(MessageTypeTaskOutcome, payload, p.now())
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeTasks, OutcomeRoutingKey(string(payload.Outcome)), msg)
}
