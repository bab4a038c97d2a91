package client

import (
	"context"
	"errors"
	"sync"

	"github.com/shaiso/Flowkit/internal/domain"
)

// StateBackend — хранилище состояния одного workflow.
//
// *store.State реализует его напрямую (воркеры с доступом к Redis).
// HTTPState — для вызывающих, у которых есть только API.
type StateBackend interface {
	WorkflowID() string
	Get(ctx context.Context, key string) (domain.Value, error)
	Set(ctx context.Context, key string, value domain.Value) error
	Delete(ctx context.Context, key string) error
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Append(ctx context.Context, name string, value domain.Value) error
	List(ctx context.Context, name string) ([]domain.Value, error)
}

// HTTPState — StateBackend поверх HTTP API оркестратора.
//
// API умеет только читать и записывать скалярные ключи. Increment,
// Append, List и Delete возвращают StateError с ErrUnsupported:
// эмулировать их через read-modify-write нельзя.
type HTTPState struct {
	client     *Client
	workflowID string
}

// NewHTTPState создаёт backend состояния workflow через API.
func NewHTTPState(c *Client, workflowID string) *HTTPState {
	return &HTTPState{client: c, workflowID: workflowID}
}

func (h *HTTPState) WorkflowID() string { return h.workflowID }

func (h *HTTPState) Get(ctx context.Context, key string) (domain.Value, error) {
	return h.client.GetWorkflowState(ctx, h.workflowID, key)
}

func (h *HTTPState) Set(ctx context.Context, key string, value domain.Value) error {
	return h.client.UpdateWorkflowState(ctx, h.workflowID, key, value)
}

func (h *HTTPState) Delete(_ context.Context, key string) error {
	return &StateError{Op: "delete", Key: key, Err: ErrUnsupported}
}

func (h *HTTPState) Increment(_ context.Context, key string, _ int64) (int64, error) {
	return 0, &StateError{Op: "increment", Key: key, Err: ErrUnsupported}
}

func (h *HTTPState) Append(_ context.Context, name string, _ domain.Value) error {
	return &StateError{Op: "append", Key: name, Err: ErrUnsupported}
}

func (h *HTTPState) List(_ context.Context, name string) ([]domain.Value, error) {
	return nil, &StateError{Op: "list", Key: name, Err: ErrUnsupported}
}

// StateProxy — кэширующий доступ к состоянию workflow.
//
// Скалярное значение кэшируется при первом чтении. Set и Delete через прокси
// сбрасывают кэш затронутого ключа. Записи других процессов прокси не видит
// до Invalidate. Increment, Append и List всегда идут в backend: в
// accumulation lists пишут параллельные воркеры.
type StateProxy struct {
	backend StateBackend

	mu     sync.Mutex
	values map[string]domain.Value
}

// NewStateProxy создаёт прокси поверх backend.
func NewStateProxy(backend StateBackend) *StateProxy {
	return &StateProxy{
		backend: backend,
		values:  make(map[string]domain.Value),
	}
}

// WorkflowID возвращает ID workflow.
func (p *StateProxy) WorkflowID() string {
	return p.backend.WorkflowID()
}

// Get возвращает значение ключа. Отсутствующий ключ — StateError
// с domain.ErrKeyNotFound.
func (p *StateProxy) Get(ctx context.Context, key string) (domain.Value, error) {
	p.mu.Lock()
	v, ok := p.values[key]
	p.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := p.backend.Get(ctx, key)
	if err != nil {
		return nil, wrapState("get", key, err)
	}

	p.mu.Lock()
	p.values[key] = v
	p.mu.Unlock()
	return v, nil
}

// GetDefault возвращает значение ключа или def, если ключа нет.
func (p *StateProxy) GetDefault(ctx context.Context, key string, def domain.Value) (domain.Value, error) {
	v, err := p.Get(ctx, key)
	if isStateMissing(err) {
		return def, nil
	}
	return v, err
}

// GetInto читает ключ и декодирует его в into.
func (p *StateProxy) GetInto(ctx context.Context, key string, into any) error {
	v, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := v.Decode(into); err != nil {
		return &StateError{Op: "decode", Key: key, Err: err}
	}
	return nil
}

// Set записывает значение. v — domain.Value или любое JSON-кодируемое значение.
func (p *StateProxy) Set(ctx context.Context, key string, v any) error {
	value, err := toValue(v)
	if err != nil {
		return &StateError{Op: "set", Key: key, Err: err}
	}
	if err := p.backend.Set(ctx, key, value); err != nil {
		return wrapState("set", key, err)
	}
	p.invalidate(key)
	return nil
}

// Delete удаляет ключ.
func (p *StateProxy) Delete(ctx context.Context, key string) error {
	if err := p.backend.Delete(ctx, key); err != nil {
		return wrapState("delete", key, err)
	}
	p.invalidate(key)
	return nil
}

// Increment атомарно увеличивает счётчик в backend.
func (p *StateProxy) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := p.backend.Increment(ctx, key, delta)
	if err != nil {
		return 0, wrapState("increment", key, err)
	}
	return n, nil
}

// Append атомарно добавляет запись в accumulation list.
func (p *StateProxy) Append(ctx context.Context, name string, v any) error {
	value, err := toValue(v)
	if err != nil {
		return &StateError{Op: "append", Key: name, Err: err}
	}
	if err := p.backend.Append(ctx, name, value); err != nil {
		return wrapState("append", name, err)
	}
	return nil
}

// List читает accumulation list из backend. Не кэшируется.
func (p *StateProxy) List(ctx context.Context, name string) ([]domain.Value, error) {
	items, err := p.backend.List(ctx, name)
	if err != nil {
		return nil, wrapState("list", name, err)
	}
	return items, nil
}

// Invalidate сбрасывает весь кэш.
func (p *StateProxy) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = make(map[string]domain.Value)
}

func (p *StateProxy) invalidate(key string) {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
}

func toValue(v any) (domain.Value, error) {
	if value, ok := v.(domain.Value); ok {
		return value, nil
	}
	return domain.NewValue(v)
}

// wrapState оборачивает ошибку backend в StateError, если она ещё не обёрнута.
func wrapState(op, key string, err error) error {
	var se *StateError
	if errors.As(err, &se) {
		return err
	}
	return &StateError{Op: op, Key: key, Err: err}
}
