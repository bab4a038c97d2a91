// Package mapreduce реализует шаблон LIST → MAP → REDUCE поверх
// состояния workflow.
//
// Контракт данных между фазами:
//   - LIST пишет urls (упорядоченный список) и total_items
//   - каждый MAP-task добавляет ровно одну запись в map_results или map_errors
//   - REDUCE читает обе lists один раз и пишет final_summary
//
// MAP-tasks не читают записи друг друга и только добавляют в списки,
// поэтому параллельные воркеры не нуждаются в блокировках.
package mapreduce
