// Package worker — процесс, который оркестратор запускает на один task.
//
// Воркер читает TASK_ID из окружения, забирает payload task:{id} из
// хранилища, вызывает обработчик по типу task и записывает ровно один
// исход: task:{id}:result или task:{id}:error, после чего публикует его
// в канал task:{id}:complete.
//
//	cfg, err := worker.ConfigFromEnv()
//	w := worker.New(cfg, store.New(rdb), worker.WithMirror(publisher))
//	report, err := w.Run(ctx)
//
// Встроенные типы: list, map и reduce (пакет mapreduce). Собственные
// обработчики регистрируются через Registry.
//
// Фатальные ошибки (нет TASK_ID, нет payload, не удалось записать исход)
// возвращаются из Run, и процесс завершается с кодом 1. Ошибка
// обработчика фатальной не является: она становится исходом error.
package worker
