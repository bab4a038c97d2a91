package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/store"
)

// TaskContext — то, с чем работает обработчик: task и состояние его workflow.
type TaskContext struct {
	Task  *domain.Task
	State *store.State
	Store *store.Store
}

// Handler выполняет task одного типа.
//
// Возвращённое значение становится результатом task, ошибка — его
// сообщением об ошибке. Записью исхода занимается Worker.
type Handler interface {
	Handle(ctx context.Context, tc *TaskContext) (domain.Value, error)
}

// HandlerFunc — адаптер функции к Handler.
type HandlerFunc func(ctx context.Context, tc *TaskContext) (domain.Value, error)

func (f HandlerFunc) Handle(ctx context.Context, tc *TaskContext) (domain.Value, error) {
	return f(ctx, tc)
}

// Registry — обработчики по типу task.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// DefaultRegistry регистрирует list, map и reduce.
func DefaultRegistry(cfg Config, mapper *MapHandler) *Registry {
	if mapper == nil {
		mapper = &MapHandler{}
	}
	r := NewRegistry()
	r.Register(TypeList, &ListHandler{Sources: cfg.Items})
	r.Register(TypeMap, mapper)
	r.Register(TypeReduce, &ReduceHandler{})
	return r
}

// Register добавляет или заменяет обработчик.
func (r *Registry) Register(taskType string, h Handler) {
	r.handlers[taskType] = h
}

// Get возвращает обработчик типа.
func (r *Registry) Get(taskType string) (Handler, error) {
	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	return h, nil
}

// Types — зарегистрированные типы по алфавиту.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
