// Package engine содержит модель объявления workflow.
//
// Включает:
//   - builder.go  — fluent-объявление шагов с проверкой при объявлении
//   - validate.go — полная валидация Definition
//   - dag.go      — построение DAG и топологическая сортировка
//   - progress.go — правило зависимостей: какие шаги готовы, какие пропускаются
//   - compile.go  — Definition → payload для оркестратора
//   - parser.go   — разбор Definition из JSON-файла
//
// Engine ничего не выполняет сам: граф исполняет удалённый оркестратор,
// engine лишь гарантирует, что отправленный граф корректен.
package engine
