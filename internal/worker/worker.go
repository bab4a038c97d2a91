package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/mq"
	"github.com/shaiso/Flowkit/internal/store"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// OutcomeMirror получает копию записанного исхода. *mq.Publisher реализует его.
type OutcomeMirror interface {
	PublishTaskOutcome(ctx context.Context, payload mq.TaskOutcomePayload) error
}

// Report — итог запуска.
type Report struct {
	TaskID   string
	Type     string
	Outcome  domain.Outcome
	Error    string
	Duration time.Duration
}

// Worker выполняет ровно один task и записывает ровно один исход.
type Worker struct {
	cfg      Config
	store    *store.Store
	registry *Registry
	mirror   OutcomeMirror
	clock    clockwork.Clock
	logger   *slog.Logger
}

// Option настраивает Worker.
type Option func(*Worker)

// WithRegistry заменяет реестр обработчиков.
func WithRegistry(r *Registry) Option {
	return func(w *Worker) { w.registry = r }
}

// WithMirror включает публикацию исхода в брокер.
func WithMirror(m OutcomeMirror) Option {
	return func(w *Worker) { w.mirror = m }
}

func WithClock(c clockwork.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New создаёт Worker. Без WithRegistry используется DefaultRegistry.
func New(cfg Config, st *store.Store, opts ...Option) *Worker {
	w := &Worker{
		cfg:    cfg,
		store:  st,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.registry == nil {
		w.registry = DefaultRegistry(cfg, &MapHandler{Policy: cfg.Retry, Clock: w.clock, Logger: w.logger})
	}
	return w
}

// Run выполняет task из конфигурации.
//
// Ошибка возвращается только в фатальных случаях: task не найден или
// исход не удалось записать. Ошибка обработчика записывается как исход
// error и не считается фатальной.
func (w *Worker) Run(ctx context.Context) (*Report, error) {
	if w.cfg.TaskID == "" {
		return nil, ErrMissingTaskID
	}

	task, err := w.store.FetchTask(ctx, w.cfg.TaskID)
	if err != nil {
		return nil, err
	}
	if task.WorkflowID == "" {
		task.WorkflowID = w.cfg.WorkflowID
	}
	if task.StepID == "" {
		task.StepID = w.cfg.StepID
	}

	taskType := w.cfg.TaskType
	if taskType == "" {
		taskType = task.Type
	}

	logger := telemetry.WithTaskID(w.logger, task.ID)
	logger = telemetry.WithWorkflowID(logger, task.WorkflowID)
	if task.StepID != "" {
		logger = telemetry.WithStepID(logger, task.StepID)
	}
	logger = logger.With("type", taskType)
	ctx = telemetry.WithLogger(ctx, logger)

	logger.Info("task started")
	start := w.clock.Now()

	result, handleErr := w.dispatch(ctx, task, taskType)
	elapsed := w.clock.Since(start)

	report := &Report{TaskID: task.ID, Type: taskType, Duration: elapsed}
	if handleErr == nil {
		report.Outcome = domain.OutcomeCompleted
		err = w.store.WriteResult(ctx, task.ID, result)
	} else {
		report.Outcome = domain.OutcomeError
		report.Error = handleErr.Error()
		err = w.store.WriteError(ctx, task.ID, report.Error)
	}
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	telemetry.TasksTotal.WithLabelValues(taskType, string(report.Outcome)).Inc()
	telemetry.TaskDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())

	if report.Outcome == domain.OutcomeCompleted {
		logger.Info("task completed", "duration", elapsed)
	} else {
		logger.Warn("task failed", "duration", elapsed, "error", report.Error)
	}

	w.publish(ctx, task, report)
	return report, nil
}

// dispatch вызывает обработчик с таймаутом и перехватом паники.
func (w *Worker) dispatch(ctx context.Context, task *domain.Task, taskType string) (result domain.Value, err error) {
	if task.WorkflowID == "" {
		return nil, ErrMissingWorkflowID
	}

	handler, err := w.registry.Get(taskType)
	if err != nil {
		return nil, err
	}

	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	tc := &TaskContext{
		Task:  task,
		State: w.store.State(task.WorkflowID),
		Store: w.store,
	}
	result, err = handler.Handle(ctx, tc)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && w.cfg.Timeout > 0 {
		err = fmt.Errorf("%w after %s: %w", ErrTaskTimeout, w.cfg.Timeout, err)
	}
	return result, err
}

// publish отправляет копию исхода. Сбой только логируется.
func (w *Worker) publish(ctx context.Context, task *domain.Task, report *Report) {
	if w.mirror == nil {
		return
	}

	payload := mq.TaskOutcomePayload{
		TaskID:     task.ID,
		WorkflowID: task.WorkflowID,
		StepID:     task.StepID,
		Type:       report.Type,
		Outcome:    report.Outcome,
		Error:      report.Error,
		DurationMs: report.Duration.Milliseconds(),
	}
	if err := w.mirror.PublishTaskOutcome(ctx, payload); err != nil {
		telemetry.MirrorFailures.Inc()
		telemetry.FromContext(ctx).Warn("outcome mirror failed", "error", err)
	}
}
