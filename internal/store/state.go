package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Flowkit/internal/domain"
)

// State — состояние одного workflow.
//
// Два способа доступа:
//   - скалярные ключи (Get/Set/Delete) в hash workflow:{id}:state
//   - accumulation lists (Append/List) — каждый производитель только
//     добавляет, не читая чужие записи
type State struct {
	rdb        redis.UniversalClient
	workflowID string
}

// State возвращает состояние workflow.
func (s *Store) State(workflowID string) *State {
	return &State{rdb: s.rdb, workflowID: workflowID}
}

// WorkflowID возвращает ID workflow.
func (st *State) WorkflowID() string {
	return st.workflowID
}

// Get читает скалярный ключ. ErrKeyNotFound, если ключа нет.
func (st *State) Get(ctx context.Context, key string) (domain.Value, error) {
	data, err := st.rdb.HGet(ctx, stateKey(st.workflowID), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get %s: %w", key, ErrKeyNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return domain.ParseValue(data), nil
}

// Set записывает скалярный ключ.
func (st *State) Set(ctx context.Context, key string, value domain.Value) error {
	data, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := st.rdb.HSet(ctx, stateKey(st.workflowID), key, string(data)).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete удаляет скалярный ключ. Отсутствие ключа не ошибка.
func (st *State) Delete(ctx context.Context, key string) error {
	if err := st.rdb.HDel(ctx, stateKey(st.workflowID), key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// All возвращает все скалярные ключи.
func (st *State) All(ctx context.Context) (map[string]domain.Value, error) {
	data, err := st.rdb.HGetAll(ctx, stateKey(st.workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get all: %w", err)
	}
	out := make(map[string]domain.Value, len(data))
	for k, v := range data {
		out[k] = domain.ParseValue(v)
	}
	return out, nil
}

// Increment атомарно увеличивает счётчик key на delta (HINCRBY).
// Счётчик хранится в поле "{key}:counter".
func (st *State) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := st.rdb.HIncrBy(ctx, stateKey(st.workflowID), counterField(key), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return n, nil
}

// Counter возвращает текущее значение счётчика. Отсутствующий счётчик — 0.
func (st *State) Counter(ctx context.Context, key string) (int64, error) {
	n, err := st.rdb.HGet(ctx, stateKey(st.workflowID), counterField(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("counter %s: %w", key, err)
	}
	return n, nil
}

// Append атомарно добавляет запись в конец accumulation list (RPUSH).
func (st *State) Append(ctx context.Context, name string, value domain.Value) error {
	data, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	if err := st.rdb.RPush(ctx, listKey(st.workflowID, name), string(data)).Err(); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}

// List читает accumulation list целиком. Отсутствующий список — пустой.
func (st *State) List(ctx context.Context, name string) ([]domain.Value, error) {
	data, err := st.rdb.LRange(ctx, listKey(st.workflowID, name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	out := make([]domain.Value, len(data))
	for i, item := range data {
		out[i] = domain.ParseValue(item)
	}
	return out, nil
}

// ListLen возвращает длину accumulation list.
func (st *State) ListLen(ctx context.Context, name string) (int64, error) {
	n, err := st.rdb.LLen(ctx, listKey(st.workflowID, name)).Result()
	if err != nil {
		return 0, fmt.Errorf("list len %s: %w", name, err)
	}
	return n, nil
}

// AddToSet атомарно добавляет значение в множество (SADD).
func (st *State) AddToSet(ctx context.Context, name string, value domain.Value) error {
	data, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("add to set %s: %w", name, err)
	}
	if err := st.rdb.SAdd(ctx, setKey(st.workflowID, name), string(data)).Err(); err != nil {
		return fmt.Errorf("add to set %s: %w", name, err)
	}
	return nil
}

// Members возвращает элементы множества в неопределённом порядке.
func (st *State) Members(ctx context.Context, name string) ([]domain.Value, error) {
	data, err := st.rdb.SMembers(ctx, setKey(st.workflowID, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("members %s: %w", name, err)
	}
	out := make([]domain.Value, len(data))
	for i, item := range data {
		out[i] = domain.ParseValue(item)
	}
	return out, nil
}

// CompareAndSwap записывает next, только если текущее значение равно expected.
// Пустой expected означает «ключа нет». Реализовано через WATCH/MULTI.
func (st *State) CompareAndSwap(ctx context.Context, key string, expected, next domain.Value) (bool, error) {
	hash := stateKey(st.workflowID)
	nextData, err := next.MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("cas %s: %w", key, err)
	}

	swapped := false
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hash, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if len(expected) != 0 {
				return nil
			}
		case err != nil:
			return err
		default:
			if len(expected) == 0 || !sameJSON(current, expected) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hash, key, string(nextData))
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	if err := st.rdb.Watch(ctx, txf, hash); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return false, nil
		}
		return false, fmt.Errorf("cas %s: %w", key, err)
	}
	return swapped, nil
}

// sameJSON сравнивает JSON без учёта форматирования.
func sameJSON(stored string, expected domain.Value) bool {
	a, errA := domain.ParseValue(stored).MarshalJSON()
	b, errB := expected.MarshalJSON()
	if errA != nil || errB != nil {
		return false
	}
	return compactJSON(a) == compactJSON(b)
}
