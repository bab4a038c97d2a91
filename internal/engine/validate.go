package engine

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/Flowkit/internal/domain"
)

// configValidator проверяет struct-теги конфигураций (validate:"...").
var configValidator = validator.New()

// Validate выполняет полную валидацию Definition.
//
// Проверяет:
// - Наличие имени и шагов
// - Уникальность имён шагов
// - Вид шага и правила reduce
// - Конфигурацию шагов и workflow
// - Валидность зависимостей (depends_on)
// - Отсутствие циклов (делегируется DAG)
//
// В отличие от Builder, допускает ссылки на шаги, объявленные ниже.
func Validate(def *Definition) error {
	if def == nil || len(def.Steps) == 0 {
		return ErrEmptySteps
	}
	if strings.TrimSpace(def.Name) == "" {
		return NewValidationError("", "name", "workflow has empty name", ErrEmptyWorkflowName)
	}
	if err := validateWorkflowConfig(def.Config); err != nil {
		return err
	}

	names := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]

		if err := ValidateStep(step); err != nil {
			return err
		}
		if names[step.Name] {
			return NewValidationError(step.Name, "name",
				fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateStepName)
		}
		names[step.Name] = true
	}

	if err := validateDependencies(def.Steps, names); err != nil {
		return err
	}

	if _, err := BuildDAG(def); err != nil {
		return err
	}

	return nil
}

// ValidateStep валидирует один шаг без учёта остальных.
func ValidateStep(step *StepDef) error {
	if strings.TrimSpace(step.Name) == "" {
		return NewValidationError("", "name", "step has empty name", ErrEmptyStepName)
	}

	if err := validateStepKind(step.Name, step.Kind); err != nil {
		return err
	}

	for _, dep := range step.DependsOn {
		if dep == step.Name {
			return NewValidationError(step.Name, "depends_on",
				"step depends on itself", ErrSelfDependency)
		}
	}

	if step.Kind == domain.StepKindReduce && len(step.DependsOn) == 0 {
		return NewValidationError(step.Name, "depends_on",
			"reduce step must depend on at least one step", ErrReduceWithoutDeps)
	}

	return validateStepConfig(step.Name, &step.Config)
}

// validateStepKind проверяет, что вид шага допустим в объявлении.
// MAPREDUCE объявляется только через MapReduce и раскладывается на два узла.
func validateStepKind(name string, kind domain.StepKind) error {
	switch kind {
	case domain.StepKindSequential, domain.StepKindParallel, domain.StepKindReduce:
		return nil
	case domain.StepKindMapReduce:
		return NewValidationError(name, "type",
			"mapreduce steps expand into map and reduce steps and cannot be declared directly", ErrUnknownStepKind)
	case "":
		return NewValidationError(name, "type", "step has empty type", ErrUnknownStepKind)
	default:
		return NewValidationError(name, "type",
			fmt.Sprintf("unknown step type: %s", kind), ErrUnknownStepKind)
	}
}

// validateStepConfig проверяет конфигурацию шага.
func validateStepConfig(name string, cfg *domain.StepConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return configError(name, err)
	}
	if cfg.PoolConfig != nil && cfg.ExecutionMode != domain.ExecutionModePooled {
		return NewValidationError(name, "pool_config",
			"pool config requires execution_mode=pooled", ErrPoolWithoutPooledMode)
	}
	return nil
}

// validateWorkflowConfig проверяет конфигурацию уровня workflow.
func validateWorkflowConfig(cfg domain.WorkflowConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return configError("", err)
	}
	return nil
}

// validateDependencies проверяет, что все depends_on ссылаются на объявленные шаги.
func validateDependencies(steps []StepDef, names map[string]bool) error {
	for i := range steps {
		step := &steps[i]

		for _, dep := range step.DependsOn {
			if !names[dep] {
				return NewValidationError(step.Name, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrMissingDependency)
			}
		}
	}

	return nil
}
