// Package client — HTTP-клиент оркестратора и runtime шагов workflow.
//
// Состав:
//   - client.go    — Client, опции, HTTP-хелперы, конверт {"data": ...}
//   - workflows.go — workflows, состояние, RunWorkflow/RunMapReduce
//   - agents.go    — агенты
//   - triggers.go  — триггеры и проверка cron
//   - execution.go — Execution: WaitForCompletion, Monitor
//   - state.go     — StateProxy и backends состояния
//   - context.go   — StepContext, WorkflowContext, DeployedAgent
//
// Клиент не повторяет запросы и не меняет статусы workflow: это делает
// оркестратор. Ожидание и мониторинг — опрос с интервалом через
// clockwork.Clock, поэтому в тестах время подменяется.
package client
