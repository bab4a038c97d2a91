// Package mq публикует исходы tasks в RabbitMQ и читает их обратно.
//
// Брокер не участвует в передаче результатов: источник истины —
// state store. Сообщения являются копией для внешних наблюдателей
// (flowctl events watch, аудит).
//
// Exchanges:
//   - flowkit.tasks — исходы tasks, ключи task.completed и task.error
//   - flowkit.dlq   — dead letter
package mq
