package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeTasks — события task (topic).
	ExchangeTasks Exchange = "flowkit.tasks"

	// ExchangeDLQ — dead letter.
	ExchangeDLQ Exchange = "flowkit.dlq"
)

const (
	// QueueOutcomes — исходы tasks для долговременных потребителей.
	QueueOutcomes Queue = "tasks.outcomes"

	// QueueDLQ — отклонённые исходы.
	QueueDLQ Queue = "dlq.tasks"
)

const (
	// RoutingKeyAllOutcomes — все исходы (шаблон topic).
	RoutingKeyAllOutcomes RoutingKey = "task.*"

	RoutingKeyDLQ RoutingKey = "tasks"
)

// OutcomeRoutingKey возвращает ключ для исхода: task.completed или task.error.
func OutcomeRoutingKey(outcome string) RoutingKey {
	return RoutingKey("task." + outcome)
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
//
//	flowkit.tasks (topic)
//	└── tasks.outcomes [task.*]   DLQ: dlq.tasks
//	flowkit.dlq (direct)
//	└── dlq.tasks [tasks]
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(string(ExchangeTasks), amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeTasks, err)
		}
		if err := ch.ExchangeDeclare(string(ExchangeDLQ), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeDLQ, err)
		}

		dlqArgs := amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQ),
		}
		if _, err := ch.QueueDeclare(string(QueueOutcomes), true, false, false, false, dlqArgs); err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueOutcomes, err)
		}
		if _, err := ch.QueueDeclare(string(QueueDLQ), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueDLQ, err)
		}

		if err := ch.QueueBind(string(QueueOutcomes), string(RoutingKeyAllOutcomes), string(ExchangeTasks), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueOutcomes, err)
		}
		if err := ch.QueueBind(string(QueueDLQ), string(RoutingKeyDLQ), string(ExchangeDLQ), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueDLQ, err)
		}
		return nil
	})
}

// DeclareWatchQueue создаёт временную эксклюзивную очередь,
// получающую копию исходов по шаблону pattern. Удаляется при отключении.
// Пустой pattern — все исходы.
func DeclareWatchQueue(ctx context.Context, conn *Connection, pattern RoutingKey) (Queue, error) {
	if pattern == "" {
		pattern = RoutingKeyAllOutcomes
	}

	var name Queue
	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare watch queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, string(pattern), string(ExchangeTasks), false, nil); err != nil {
			return fmt.Errorf("bind watch queue: %w", err)
		}
		name = Queue(q.Name)
		return nil
	})
	return name, err
}
