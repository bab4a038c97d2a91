package flowtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Flowkit/internal/domain"
)

// MemoryState — состояние workflow в памяти процесса.
//
// Раскладка повторяет store.State: скалярные ключи, счётчики и
// accumulation lists живут в разных пространствах.
type MemoryState struct {
	workflowID string

	mu       sync.Mutex
	values   map[string]domain.Value
	counters map[string]int64
	lists    map[string][]domain.Value
}

// NewMemoryState создаёт пустое состояние workflow.
func NewMemoryState(workflowID string) *MemoryState {
	return &MemoryState{
		workflowID: workflowID,
		values:     make(map[string]domain.Value),
		counters:   make(map[string]int64),
		lists:      make(map[string][]domain.Value),
	}
}

func (m *MemoryState) WorkflowID() string { return m.workflowID }

// Get возвращает значение ключа или domain.ErrKeyNotFound.
func (m *MemoryState) Get(_ context.Context, key string) (domain.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return clone(v), nil
}

func (m *MemoryState) Set(_ context.Context, key string, value domain.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = clone(value)
	return nil
}

func (m *MemoryState) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryState) Increment(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += delta
	return m.counters[key], nil
}

// Counter возвращает счётчик. Отсутствующий — 0.
func (m *MemoryState) Counter(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

func (m *MemoryState) Append(_ context.Context, name string, value domain.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[name] = append(m.lists[name], clone(value))
	return nil
}

// List возвращает копию accumulation list. Отсутствующий — пустой.
func (m *MemoryState) List(_ context.Context, name string) ([]domain.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.Value, len(m.lists[name]))
	for i, v := range m.lists[name] {
		items[i] = clone(v)
	}
	return items, nil
}

// Seed записывает входные данные. Значения кодируются в JSON.
func (m *MemoryState) Seed(inputs map[string]any) error {
	for key, v := range inputs {
		value, err := domain.NewValue(v)
		if err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
		m.mu.Lock()
		m.values[key] = clone(value)
		m.mu.Unlock()
	}
	return nil
}

// Snapshot возвращает копию скалярных ключей.
func (m *MemoryState) Snapshot() map[string]domain.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Value, len(m.values))
	for k, v := range m.values {
		out[k] = clone(v)
	}
	return out
}

func clone(v domain.Value) domain.Value {
	if v == nil {
		return nil
	}
	return append(domain.Value(nil), v...)
}
