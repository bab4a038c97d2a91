package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Ошибки валидации объявления workflow.
var (
	// ErrEmptyWorkflowName — workflow без имени.
	ErrEmptyWorkflowName = errors.New("workflow has empty name")

	// ErrEmptySteps — workflow не содержит шагов.
	ErrEmptySteps = errors.New("workflow has no steps")

	// ErrEmptyStepName — шаг не имеет имени.
	ErrEmptyStepName = errors.New("step has empty name")

	// ErrDuplicateStepName — несколько шагов с одинаковым именем.
	ErrDuplicateStepName = errors.New("duplicate step name")

	// ErrUnknownStepKind — неизвестный вид шага.
	ErrUnknownStepKind = errors.New("unknown step kind")

	// ErrMissingDependency — шаг зависит от необъявленного шага.
	ErrMissingDependency = errors.New("step depends on unknown step")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — шаг зависит от самого себя.
	ErrSelfDependency = errors.New("step depends on itself")

	// ErrReduceWithoutDeps — reduce-шаг без depends_on.
	ErrReduceWithoutDeps = errors.New("reduce step has no dependencies")

	// ErrInvalidConfig — конфигурация шага или workflow не прошла проверку.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrPoolWithoutPooledMode — pool_config задан без execution_mode=pooled.
	ErrPoolWithoutPooledMode = errors.New("pool config requires pooled execution mode")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  string // имя шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// configError переводит ошибки validator в ValidationError.
func configError(stepID string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError(stepID, "config", err.Error(), ErrInvalidConfig)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	field := ""
	if len(fieldErrs) > 0 {
		field = fieldErrs[0].Namespace()
	}
	return NewValidationError(stepID, field,
		"invalid config: "+strings.Join(msgs, "; "), ErrInvalidConfig)
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got: %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
}
