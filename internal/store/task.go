package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Flowkit/internal/domain"
)

// FetchTask читает payload task. ErrTaskNotFound, если его нет.
func (s *Store) FetchTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := s.rdb.Get(ctx, taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("fetch task %s: %w", taskID, ErrTaskNotFound)
		}
		return nil, fmt.Errorf("fetch task %s: %w", taskID, err)
	}
	return domain.ParseTask(taskID, data)
}

// PutTask записывает payload task с TTL.
// Задачи выдаёт оркестратор; метод нужен для тестов и локального запуска.
func (s *Store) PutTask(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	if err := s.rdb.Set(ctx, taskKey(task.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put task %s: %w", task.ID, err)
	}
	return nil
}

// WriteResult сохраняет результат и публикует "completed".
//
// Сначала SET, потом PUBLISH: подписчик, разбуженный уведомлением,
// всегда находит результат на месте.
func (s *Store) WriteResult(ctx context.Context, taskID string, result domain.Value) error {
	data, err := result.MarshalJSON()
	if err != nil {
		return fmt.Errorf("write result %s: %w", taskID, err)
	}
	if err := s.rdb.Set(ctx, resultKey(taskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write result %s: %w", taskID, err)
	}
	if err := s.rdb.Publish(ctx, CompletionChannel(taskID), string(domain.OutcomeCompleted)).Err(); err != nil {
		return fmt.Errorf("publish completion %s: %w", taskID, err)
	}

	s.logger.Debug("task result written", "task_id", taskID)
	return nil
}

// WriteError сохраняет текст ошибки и публикует "error" в тот же канал.
func (s *Store) WriteError(ctx context.Context, taskID, message string) error {
	if err := s.rdb.Set(ctx, errorKey(taskID), message, s.ttl).Err(); err != nil {
		return fmt.Errorf("write error %s: %w", taskID, err)
	}
	if err := s.rdb.Publish(ctx, CompletionChannel(taskID), string(domain.OutcomeError)).Err(); err != nil {
		return fmt.Errorf("publish completion %s: %w", taskID, err)
	}

	s.logger.Debug("task error written", "task_id", taskID)
	return nil
}

// ReadResult читает результат task. ErrResultNotFound, если его нет или истёк TTL.
func (s *Store) ReadResult(ctx context.Context, taskID string) (domain.Value, error) {
	data, err := s.rdb.Get(ctx, resultKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("read result %s: %w", taskID, ErrResultNotFound)
		}
		return nil, fmt.Errorf("read result %s: %w", taskID, err)
	}
	return domain.ParseValue(data), nil
}

// ReadError читает текст ошибки task.
func (s *Store) ReadError(ctx context.Context, taskID string) (string, error) {
	msg, err := s.rdb.Get(ctx, errorKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("read error %s: %w", taskID, ErrResultNotFound)
		}
		return "", fmt.Errorf("read error %s: %w", taskID, err)
	}
	return msg, nil
}

// Outcome возвращает уже записанный исход task.
// Второе значение false, если исход ещё не записан.
func (s *Store) Outcome(ctx context.Context, taskID string) (domain.Outcome, bool, error) {
	n, err := s.rdb.Exists(ctx, resultKey(taskID)).Result()
	if err != nil {
		return "", false, fmt.Errorf("check result %s: %w", taskID, err)
	}
	if n > 0 {
		return domain.OutcomeCompleted, true, nil
	}

	n, err = s.rdb.Exists(ctx, errorKey(taskID)).Result()
	if err != nil {
		return "", false, fmt.Errorf("check error %s: %w", taskID, err)
	}
	if n > 0 {
		return domain.OutcomeError, true, nil
	}
	return "", false, nil
}

// AwaitOutcome ждёт исход task через канал task:{id}:complete.
//
// После подписки ключи проверяются повторно: уведомление, отправленное
// до подписки, иначе было бы потеряно.
func (s *Store) AwaitOutcome(ctx context.Context, taskID string) (domain.Outcome, error) {
	sub := s.rdb.Subscribe(ctx, CompletionChannel(taskID))
	defer sub.Close()

	// Ждём подтверждения подписки
	if _, err := sub.Receive(ctx); err != nil {
		return "", fmt.Errorf("subscribe %s: %w", taskID, err)
	}

	outcome, ok, err := s.Outcome(ctx, taskID)
	if err != nil {
		return "", err
	}
	if ok {
		return outcome, nil
	}

	ch := sub.Channel()
	select {
	case msg, open := <-ch:
		if !open {
			return "", fmt.Errorf("await %s: subscription closed", taskID)
		}
		switch domain.Outcome(msg.Payload) {
		case domain.OutcomeCompleted, domain.OutcomeError:
			return domain.Outcome(msg.Payload), nil
		default:
			return "", fmt.Errorf("await %s: %w: %q", taskID, ErrUnknownOutcome, msg.Payload)
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// IncrementRetry увеличивает счётчик попыток task и продлевает его TTL.
// Возвращает номер текущей попытки (1 для первой).
func (s *Store) IncrementRetry(ctx context.Context, workflowID, taskID string) (int64, error) {
	key := retryKey(workflowID, taskID)

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment retry %s: %w", taskID, err)
	}
	return incr.Val(), nil
}

// RetryCount возвращает число сделанных попыток. Нет счётчика — 0.
func (s *Store) RetryCount(ctx context.Context, workflowID, taskID string) (int64, error) {
	n, err := s.rdb.Get(ctx, retryKey(workflowID, taskID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("retry count %s: %w", taskID, err)
	}
	return n, nil
}

// compactJSON возвращает JSON без пробелов; при ошибке — исходную строку.
func compactJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}
