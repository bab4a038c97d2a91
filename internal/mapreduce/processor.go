package mapreduce

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 10 * time.Second
	topWordsPerPage     = 10
)

// Processor выполняет доменную работу над одним элементом.
// attempt — номер попытки, начиная с 1.
type Processor interface {
	Process(ctx context.Context, item Item, attempt int) (*PageStats, error)
}

// ProcessorFunc — адаптер функции к Processor.
type ProcessorFunc func(ctx context.Context, item Item, attempt int) (*PageStats, error)

// Process вызывает f.
func (f ProcessorFunc) Process(ctx context.Context, item Item, attempt int) (*PageStats, error) {
	return f(ctx, item, attempt)
}

// HTTPProcessor скачивает страницу и считает слова.
//
// Ошибка сети и HTTP ≥400 оборачивают ErrRequest (request_error).
// Ошибка чтения тела — processing_error.
type HTTPProcessor struct {
	Client  *http.Client
	Timeout time.Duration
}

// Process скачивает item.URL.
func (p *HTTPProcessor) Process(ctx context.Context, item Item, _ int) (*PageStats, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequest, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	text := string(body)
	count, top := CountWords(text, topWordsPerPage)
	return &PageStats{
		WordCount:     count,
		TopWords:      top,
		StatusCode:    resp.StatusCode,
		ContentLength: len(text),
	}, nil
}

// CountWords считает слова (разделитель — пробельные символы)
// и возвращает k самых частых.
func CountWords(text string, k int) (int, map[string]int) {
	words := strings.Fields(text)
	freq := make(map[string]int)
	for _, w := range words {
		freq[w]++
	}

	top := make(map[string]int)
	for _, wc := range rankWords(freq, k) {
		top[wc.Word] = wc.Count
	}
	return len(words), top
}

// rankWords сортирует слова по убыванию частоты, при равенстве по слову,
// и оставляет первые k.
func rankWords(freq map[string]int, k int) []WordCount {
	ranked := make([]WordCount, 0, len(freq))
	for w, c := range freq {
		ranked = append(ranked, WordCount{Word: w, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Word < ranked[j].Word
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// FailFirstAttempt падает на первой попытке и делегирует Next на следующих.
// Используется для проверки retry воркера.
type FailFirstAttempt struct {
	Next Processor
}

// Process падает при attempt == 1.
func (p *FailFirstAttempt) Process(ctx context.Context, item Item, attempt int) (*PageStats, error) {
	if attempt <= 1 {
		return nil, fmt.Errorf("simulated failure on first attempt for %s", item.URL)
	}
	return p.Next.Process(ctx, item, attempt)
}
