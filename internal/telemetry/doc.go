// Package telemetry обеспечивает наблюдаемость воркера и CLI.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Логи пишутся в едином формате с ключами workflow_id, step_id, task_id.
// Воркер экспортирует метрики на /metrics endpoint.
package telemetry
