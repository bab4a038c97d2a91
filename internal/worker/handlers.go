package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/mapreduce"
)

// Встроенные типы task.
const (
	TypeList   = "list"
	TypeMap    = "map"
	TypeReduce = "reduce"
)

// ListHandler — фаза LIST.
type ListHandler struct {
	Sources mapreduce.Sources
}

func (h *ListHandler) Handle(ctx context.Context, tc *TaskContext) (domain.Value, error) {
	items, err := mapreduce.List(ctx, tc.State, h.Sources)
	if err != nil {
		return nil, err
	}
	return domain.NewValue(map[string]int{mapreduce.KeyTotalItems: len(items)})
}

// MapHandler — фаза MAP. Ошибка элемента попадает в map_errors,
// а task при этом завершается успешно с записью MapOutcome.
type MapHandler struct {
	// Processor — nil означает HTTPProcessor.
	Processor mapreduce.Processor

	// Policy — повторы внутри task. nil — одна попытка.
	// retry_policy из payload task имеет приоритет.
	Policy *domain.RetryPolicy

	ItemAlias string
	Sleep     func(ctx context.Context, d time.Duration) error
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

func (h *MapHandler) Handle(ctx context.Context, tc *TaskContext) (domain.Value, error) {
	processor := h.Processor
	if processor == nil {
		processor = &mapreduce.HTTPProcessor{}
	}

	policy := h.Policy
	if tc.Task.RetryPolicy != nil {
		policy = tc.Task.RetryPolicy
	}

	m := &mapreduce.Mapper{
		State:     tc.State,
		Processor: processor,
		Policy:    policy,
		ItemAlias: h.ItemAlias,
		Sleep:     h.Sleep,
		Clock:     h.Clock,
		Logger:    h.Logger,
	}
	if tc.Store != nil {
		m.Retries = tc.Store
	}

	outcome, err := m.Run(ctx, tc.Task)
	if err != nil {
		return nil, err
	}
	return domain.NewValue(outcome)
}

// ReduceHandler — фаза REDUCE.
type ReduceHandler struct{}

func (h *ReduceHandler) Handle(ctx context.Context, tc *TaskContext) (domain.Value, error) {
	summary, err := mapreduce.Reduce(ctx, tc.State)
	if err != nil {
		return nil, err
	}
	return domain.NewValue(summary)
}
