package mapreduce

import (
	"context"
	"fmt"
	"math"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// topWordsOverall — размер объединённой таблицы частот.
const topWordsOverall = 20

// Aggregate считает итог по содержимому обеих accumulation lists.
//
// Функция чистая: зависит только от переданных записей.
// Все средние и доли при нулевом знаменателе равны 0.
func Aggregate(results []MapResult, errs []MapError) *Summary {
	s := &Summary{
		TotalURLsProcessed: len(results),
		TotalURLsFailed:    len(errs),
		Top20Words:         map[string]int{},
		TopWordsRanked:     []WordCount{},
		SuccessfulURLs:     make([]string, 0, len(results)),
		FailedURLs:         make([]string, 0, len(errs)),
		ErrorsByType:       map[ErrorType]int{},
	}

	combined := make(map[string]int)
	for i, r := range results {
		s.TotalWords += r.WordCount
		s.TotalBytes += r.ContentLength
		s.SuccessfulURLs = append(s.SuccessfulURLs, r.URL)

		if i == 0 || r.WordCount < s.MinWordsPerPage {
			s.MinWordsPerPage = r.WordCount
		}
		if i == 0 || r.WordCount > s.MaxWordsPerPage {
			s.MaxWordsPerPage = r.WordCount
		}

		for w, c := range r.TopWords {
			combined[w] += c
		}
	}

	for _, e := range errs {
		s.FailedURLs = append(s.FailedURLs, e.URL)
		errType := e.ErrorType
		if errType == "" {
			errType = ErrorTypeProcessing
		}
		s.ErrorsByType[errType]++
	}

	if n := len(results); n > 0 {
		s.AverageWordsPerPage = float64(s.TotalWords) / float64(n)
	}
	if total := len(results) + len(errs); total > 0 {
		s.SuccessRate = round2(float64(len(results)) / float64(total) * 100)
	}

	s.TopWordsRanked = rankWords(combined, topWordsOverall)
	for _, wc := range s.TopWordsRanked {
		s.Top20Words[wc.Word] = wc.Count
	}
	return s
}

// Reduce — фаза REDUCE: читает обе accumulation lists один раз
// и записывает final_summary.
//
// ErrNoMapOutput, если обе lists пусты.
func Reduce(ctx context.Context, st State) (*Summary, error) {
	rawResults, err := st.List(ctx, ListResults)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ListResults, err)
	}
	rawErrors, err := st.List(ctx, ListErrors)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ListErrors, err)
	}

	if len(rawResults) == 0 && len(rawErrors) == 0 {
		return nil, ErrNoMapOutput
	}

	results, err := decodeAll[MapResult](rawResults)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ListResults, err)
	}
	errs, err := decodeAll[MapError](rawErrors)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ListErrors, err)
	}

	summary := Aggregate(results, errs)

	value, err := domain.NewValue(summary)
	if err != nil {
		return nil, err
	}
	if err := st.Set(ctx, KeyFinalSummary, value); err != nil {
		return nil, fmt.Errorf("store %s: %w", KeyFinalSummary, err)
	}

	telemetry.FromContext(ctx).Info("reduce phase completed",
		"processed", summary.TotalURLsProcessed,
		"failed", summary.TotalURLsFailed,
		"success_rate", summary.SuccessRate)
	return summary, nil
}

func decodeAll[T any](values []domain.Value) ([]T, error) {
	out := make([]T, 0, len(values))
	for i, v := range values {
		var rec T
		if err := v.Decode(&rec); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// round2 округляет до двух знаков после запятой.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
