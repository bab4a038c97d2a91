// Package store реализует общее хранилище состояния и протокол передачи tasks.
//
// Хранилище — Redis. Через него встречаются оркестратор, клиент и воркеры:
//   - state.go — состояние workflow: скалярные ключи, счётчики, accumulation lists
//   - task.go  — протокол task: FetchTask → WriteResult | WriteError, счётчик попыток
//
// Протокол task:
//
//	воркер              Redis
//	  │ GET task:{id}     │
//	  │──────────────────▶│
//	  │ SET task:{id}:result EX 3600
//	  │──────────────────▶│
//	  │ PUBLISH task:{id}:complete "completed"
//	  │──────────────────▶│
//
// Исход пишется до публикации, поэтому подписчик, получивший уведомление,
// всегда может прочитать результат. Для каждого task вызывается ровно один
// из WriteResult/WriteError.
package store
