package engine

import (
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
)

// WorkflowOption — опция уровня workflow.
type WorkflowOption func(*Definition)

// Description задаёт описание workflow.
func Description(text string) WorkflowOption {
	return func(d *Definition) { d.Description = text }
}

// MaxParallel ограничивает число одновременно выполняемых шагов.
func MaxParallel(n int) WorkflowOption {
	return func(d *Definition) { d.Config.MaxParallel = n }
}

// Timeout задаёт таймаут всего workflow.
func Timeout(timeout time.Duration) WorkflowOption {
	return func(d *Definition) { d.Config.Timeout = domain.Duration(timeout) }
}

// WorkflowRetry задаёт политику retry по умолчанию для шагов.
func WorkflowRetry(policy domain.RetryPolicy) WorkflowOption {
	return func(d *Definition) { d.Config.RetryPolicy = &policy }
}

// FailureStrategy задаёт поведение при падении шага.
func FailureStrategy(strategy domain.FailureStrategy) WorkflowOption {
	return func(d *Definition) { d.Config.FailureStrategy = strategy }
}

// CleanupPolicy задаёт политику удаления агентов.
func CleanupPolicy(policy string) WorkflowOption {
	return func(d *Definition) { d.Config.CleanupPolicy = policy }
}

// WorkflowResources задаёт лимиты ресурсов по умолчанию.
func WorkflowResources(limits domain.ResourceLimits) WorkflowOption {
	return func(d *Definition) { d.Config.ResourceLimits = &limits }
}

// stepDecl — шаг в процессе объявления.
// Флаги reduce/parallel определяют вид шага после применения всех опций.
type stepDecl struct {
	def      StepDef
	reduce   bool
	parallel bool
}

// kind выводит вид шага: reduce ⇒ REDUCE, parallel ⇒ PARALLEL, иначе SEQUENTIAL.
func (s *stepDecl) kind() domain.StepKind {
	switch {
	case s.reduce:
		return domain.StepKindReduce
	case s.parallel:
		return domain.StepKindParallel
	default:
		return domain.StepKindSequential
	}
}

// StepOption — опция объявления шага.
type StepOption func(*stepDecl)

// Image задаёт образ агента.
func Image(image string) StepOption {
	return func(s *stepDecl) { s.def.Config.Image = image }
}

// Command переопределяет команду контейнера.
func Command(args ...string) StepOption {
	return func(s *stepDecl) { s.def.Config.Command = args }
}

// Env добавляет переменную окружения агента.
func Env(key, value string) StepOption {
	return func(s *stepDecl) {
		if s.def.Config.EnvVars == nil {
			s.def.Config.EnvVars = make(map[string]string)
		}
		s.def.Config.EnvVars[key] = value
	}
}

// DependsOn добавляет зависимости шага.
func DependsOn(names ...string) StepOption {
	return func(s *stepDecl) { s.def.DependsOn = append(s.def.DependsOn, names...) }
}

// Reduce помечает шаг как агрегирующий.
func Reduce() StepOption {
	return func(s *stepDecl) { s.reduce = true }
}

// AsParallel помечает шаг как параллельный с потолком maxWorkers.
func AsParallel(maxWorkers int) StepOption {
	return func(s *stepDecl) {
		s.parallel = true
		s.def.Config.MaxWorkers = maxWorkers
	}
}

// Dynamic включает определение числа воркеров по размеру входа.
func Dynamic() StepOption {
	return func(s *stepDecl) { s.def.Config.Dynamic = true }
}

// StepTimeout задаёт таймаут шага.
func StepTimeout(timeout time.Duration) StepOption {
	return func(s *stepDecl) { s.def.Config.Timeout = domain.Duration(timeout) }
}

// Retry задаёт политику retry шага.
func Retry(policy domain.RetryPolicy) StepOption {
	return func(s *stepDecl) { s.def.Config.RetryPolicy = &policy }
}

// Resources задаёт лимиты ресурсов агента.
func Resources(limits domain.ResourceLimits) StepOption {
	return func(s *stepDecl) { s.def.Config.ResourceLimits = &limits }
}

// Pooled переводит шаг в pooled режим с указанной конфигурацией пула.
func Pooled(pool domain.PoolConfig) StepOption {
	return func(s *stepDecl) {
		s.def.Config.ExecutionMode = domain.ExecutionModePooled
		s.def.Config.PoolConfig = &pool
	}
}

// Standard возвращает шаг в standard режим и убирает пул.
func Standard() StepOption {
	return func(s *stepDecl) {
		s.def.Config.ExecutionMode = domain.ExecutionModeStandard
		s.def.Config.PoolConfig = nil
	}
}

// MapOver задаёт настройки map-шага.
func MapOver(cfg domain.MapConfig) StepOption {
	return func(s *stepDecl) { s.def.Config.MapConfig = &cfg }
}

// StepDescription задаёт описание шага.
func StepDescription(text string) StepOption {
	return func(s *stepDecl) { s.def.Description = text }
}
