// Package cli реализует flowctl — клиент командной строки Flowkit.
//
// Команды сгруппированы по ресурсам:
//   - workflow: validate, create, list, show, start, wait, monitor, jobs,
//     metrics, state get/set, summary, archive, archived
//   - agent: deploy, start, stop, show, logs
//   - trigger: create, list, enable, disable, fire
//   - events: watch
//
// Настройки читаются viper из флагов и окружения с префиксом FLOWKIT_
// (FLOWKIT_API_URL, FLOWKIT_TOKEN, FLOWKIT_REDIS_URL, FLOWKIT_DB_URL,
// FLOWKIT_AMQP_URL). Данные печатаются в stdout таблицей или JSON (--json),
// сообщения в stderr, поэтому вывод можно передавать в jq.
package cli
