// Package flowtest — локальный прогон объявлений workflow для тестов.
//
// Runner выполняет шаги Definition в текущем процессе по порядку DAG.
// Шаги получают обычный client.StepContext: состояние лежит в
// MemoryState, агенты разворачиваются в фейковом AgentAPI, исход
// которого задаётся по образу. Assert* проверяют Report через testify.
package flowtest
