package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// Mapper — фаза MAP для одного task.
//
// Определяет элемент, выполняет Processor с retry и добавляет ровно одну
// запись: в map_results при успехе или в map_errors после исчерпания
// попыток. Ошибка элемента не превращается в ошибку task; Run возвращает
// error только когда запись сделать невозможно.
type Mapper struct {
	State     State
	Retries   RetryCounter
	Processor Processor

	// Policy — политика retry. nil — одна попытка.
	Policy *domain.RetryPolicy

	// ItemAlias — поле входа task с элементом. Пусто — DefaultItemAlias.
	ItemAlias string

	// Sleep ждёт паузу между попытками. nil — ожидание по Clock.
	Sleep func(ctx context.Context, d time.Duration) error

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Run выполняет map-task.
func (m *Mapper) Run(ctx context.Context, task *domain.Task) (*MapOutcome, error) {
	logger := telemetry.OrDefault(m.Logger).With("task_id", task.ID, "workflow_id", task.WorkflowID)

	item, err := ResolveItem(ctx, task, m.State, m.ItemAlias)
	if err != nil {
		return nil, err
	}
	logger = logger.With("url", item.URL)

	maxAttempts := 1
	if m.Policy != nil {
		maxAttempts = m.Policy.Attempts()
	}

	var (
		stats   *PageStats
		lastErr error
		attempt int
	)
	for {
		attempt, err = m.nextAttempt(ctx, task)
		if err != nil {
			return nil, err
		}

		stats, lastErr = m.Processor.Process(ctx, item, attempt)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger.Warn("item processing failed", "attempt", attempt, "max_attempts", maxAttempts, "error", lastErr)
		if attempt >= maxAttempts {
			break
		}

		telemetry.TaskRetries.Inc()
		if err := m.sleep(ctx, m.Policy.BackoffFor(attempt)); err != nil {
			return nil, err
		}
	}

	now := unixSeconds(m.clock().Now())

	if lastErr != nil {
		rec := &MapError{
			TaskID:    task.ID,
			URL:       item.URL,
			Error:     lastErr.Error(),
			ErrorType: classify(lastErr),
			Attempts:  attempt,
			Timestamp: now,
		}
		if err := m.append(ctx, ListErrors, rec); err != nil {
			return nil, err
		}
		telemetry.MapItemsTotal.WithLabelValues("error").Inc()
		logger.Info("map item failed", "error_type", rec.ErrorType, "attempts", attempt)
		return &MapOutcome{Error: rec}, nil
	}

	rec := &MapResult{
		TaskID:        task.ID,
		URL:           item.URL,
		WordCount:     stats.WordCount,
		TopWords:      stats.TopWords,
		StatusCode:    stats.StatusCode,
		ContentLength: stats.ContentLength,
		Attempts:      attempt,
		Timestamp:     now,
	}
	if err := m.append(ctx, ListResults, rec); err != nil {
		return nil, err
	}
	telemetry.MapItemsTotal.WithLabelValues("result").Inc()
	logger.Info("map item processed", "word_count", rec.WordCount, "attempts", attempt)
	return &MapOutcome{Result: rec}, nil
}

// nextAttempt увеличивает счётчик попыток в хранилище.
// Счётчик общий для повторных выдач того же task ID.
func (m *Mapper) nextAttempt(ctx context.Context, task *domain.Task) (int, error) {
	if m.Retries == nil {
		return 1, nil
	}
	n, err := m.Retries.IncrementRetry(ctx, task.WorkflowID, task.ID)
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return int(n), nil
}

func (m *Mapper) append(ctx context.Context, list string, rec any) error {
	value, err := domain.NewValue(rec)
	if err != nil {
		return err
	}
	if err := m.State.Append(ctx, list, value); err != nil {
		return fmt.Errorf("append to %s: %w", list, err)
	}
	return nil
}

func (m *Mapper) sleep(ctx context.Context, d time.Duration) error {
	if m.Sleep != nil {
		return m.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock().After(d):
		return nil
	}
}

func (m *Mapper) clock() clockwork.Clock {
	if m.Clock == nil {
		return clockwork.NewRealClock()
	}
	return m.Clock
}

// classify определяет error_type по ошибке Processor.
func classify(err error) ErrorType {
	if errors.Is(err, ErrRequest) {
		return ErrorTypeRequest
	}
	return ErrorTypeProcessing
}
