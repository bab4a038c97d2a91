package store

// Ключи хранилища. Формат общий для оркестратора, клиента и воркеров:
//
//	workflow:{id}:state                hash: ключ состояния → JSON
//	workflow:{id}:state:list:{name}    list: accumulation list
//	workflow:{id}:state:set:{name}     set
//	workflow:{id}:retry:{task_id}      счётчик попыток, TTL
//	task:{id}                          payload task
//	task:{id}:result                   результат (JSON), TTL
//	task:{id}:error                    текст ошибки, TTL
//	task:{id}:complete                 pub/sub канал: "completed" | "error"

func stateKey(workflowID string) string {
	return "workflow:" + workflowID + ":state"
}

func listKey(workflowID, name string) string {
	return "workflow:" + workflowID + ":state:list:" + name
}

func setKey(workflowID, name string) string {
	return "workflow:" + workflowID + ":state:set:" + name
}

func retryKey(workflowID, taskID string) string {
	return "workflow:" + workflowID + ":retry:" + taskID
}

func taskKey(taskID string) string {
	return "task:" + taskID
}

func resultKey(taskID string) string {
	return "task:" + taskID + ":result"
}

func errorKey(taskID string) string {
	return "task:" + taskID + ":error"
}

// CompletionChannel возвращает pub/sub канал завершения task.
func CompletionChannel(taskID string) string {
	return "task:" + taskID + ":complete"
}

// counterField — поле hash, в котором Increment хранит счётчик.
func counterField(key string) string {
	return key + ":counter"
}
