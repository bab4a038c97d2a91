package mapreduce

import (
	"context"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
)

// Ключи состояния workflow, которыми обмениваются фазы.
const (
	// KeyItems — упорядоченный список элементов, записанный LIST.
	KeyItems = "urls"

	// KeyTotalItems — число элементов.
	KeyTotalItems = "total_items"

	// ListResults — accumulation list успешных записей MAP.
	ListResults = "map_results"

	// ListErrors — accumulation list ошибок MAP.
	ListErrors = "map_errors"

	// KeyFinalSummary — итог REDUCE.
	KeyFinalSummary = "final_summary"
)

// ErrorType — класс ошибки элемента в map_errors.
type ErrorType string

const (
	// ErrorTypeRequest — не удалось получить данные (сеть, HTTP ≥400).
	ErrorTypeRequest ErrorType = "request_error"

	// ErrorTypeProcessing — данные получены, но обработка упала.
	ErrorTypeProcessing ErrorType = "processing_error"
)

// State — доступ к состоянию workflow, нужный фазам.
// *store.State реализует его.
type State interface {
	Get(ctx context.Context, key string) (domain.Value, error)
	Set(ctx context.Context, key string, value domain.Value) error
	Append(ctx context.Context, name string, value domain.Value) error
	List(ctx context.Context, name string) ([]domain.Value, error)
}

// RetryCounter — счётчик попыток task. *store.Store реализует его.
type RetryCounter interface {
	IncrementRetry(ctx context.Context, workflowID, taskID string) (int64, error)
}

// Item — элемент, назначенный map-task.
type Item struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// PageStats — результат обработки одного элемента.
type PageStats struct {
	WordCount     int            `json:"word_count"`
	TopWords      map[string]int `json:"top_words"`
	StatusCode    int            `json:"status_code"`
	ContentLength int            `json:"content_length"`
}

// MapResult — запись в map_results.
type MapResult struct {
	TaskID        string         `json:"task_id"`
	URL           string         `json:"url"`
	WordCount     int            `json:"word_count"`
	TopWords      map[string]int `json:"top_words"`
	StatusCode    int            `json:"status_code"`
	ContentLength int            `json:"content_length"`
	Attempts      int            `json:"attempts,omitempty"`

	// Timestamp — Unix-время в секундах (как пишут воркеры на других языках).
	Timestamp float64 `json:"timestamp"`
}

// MapError — запись в map_errors.
type MapError struct {
	TaskID    string    `json:"task_id"`
	URL       string    `json:"url"`
	Error     string    `json:"error"`
	ErrorType ErrorType `json:"error_type,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

// MapOutcome — итог map-task: ровно одно из полей заполнено.
type MapOutcome struct {
	Result *MapResult `json:"result,omitempty"`
	Error  *MapError  `json:"error,omitempty"`
}

// WordCount — слово и его частота.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Summary — итог REDUCE (ключ final_summary).
type Summary struct {
	TotalURLsProcessed  int     `json:"total_urls_processed"`
	TotalURLsFailed     int     `json:"total_urls_failed"`
	TotalWords          int     `json:"total_words"`
	TotalBytes          int     `json:"total_bytes"`
	AverageWordsPerPage float64 `json:"average_words_per_page"`
	MinWordsPerPage     int     `json:"min_words_per_page"`
	MaxWordsPerPage     int     `json:"max_words_per_page"`
	SuccessRate         float64 `json:"success_rate"`

	// Top20Words — объединённая частота слов по всем страницам.
	Top20Words map[string]int `json:"top_20_words"`

	// TopWordsRanked — те же слова по убыванию частоты (при равенстве по слову).
	TopWordsRanked []WordCount `json:"top_words_ranked"`

	SuccessfulURLs []string          `json:"successful_urls"`
	FailedURLs     []string          `json:"failed_urls"`
	ErrorsByType   map[ErrorType]int `json:"errors_by_type"`
}

// unixSeconds переводит время в Unix-секунды с дробной частью.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
