package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
)

// Builder собирает Definition из объявлений шагов.
//
// Каждое объявление проверяется сразу: ошибка возникает на этапе объявления,
// а не при отправке в оркестратор. Первая ошибка запоминается, последующие
// вызовы ничего не делают и Build возвращает её.
//
//	def, err := engine.NewWorkflow("crawl").
//		Step("list", engine.Image("crawler:latest")).
//		Parallel("map", 10, engine.DependsOn("list")).
//		Step("reduce", engine.Reduce(), engine.DependsOn("map")).
//		Build()
type Builder struct {
	def   Definition
	names map[string]bool
	err   error
}

// NewWorkflow начинает объявление workflow.
func NewWorkflow(name string, opts ...WorkflowOption) *Builder {
	b := &Builder{
		def:   Definition{Name: name},
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(&b.def)
	}

	if strings.TrimSpace(name) == "" {
		b.err = NewValidationError("", "name", "workflow has empty name", ErrEmptyWorkflowName)
		return b
	}
	if err := validateWorkflowConfig(b.def.Config); err != nil {
		b.err = err
	}
	return b
}

// Step объявляет шаг. Вид шага выводится из опций Reduce и AsParallel.
func (b *Builder) Step(name string, opts ...StepOption) *Builder {
	if b.err != nil {
		return b
	}
	decl := &stepDecl{def: StepDef{Name: name}}
	for _, opt := range opts {
		opt(decl)
	}
	return b.declare(decl)
}

// Parallel объявляет параллельный шаг с потолком maxWorkers.
//
// По умолчанию шаг работает в pooled режиме; размер пула задаётся PoolSize.
func (b *Builder) Parallel(name string, maxWorkers int, opts ...StepOption) *Builder {
	if b.err != nil {
		return b
	}
	decl := &stepDecl{def: StepDef{Name: name}, parallel: true}
	decl.def.Config.MaxWorkers = maxWorkers
	decl.def.Config.ExecutionMode = domain.ExecutionModePooled
	for _, opt := range opts {
		opt(decl)
	}
	return b.declare(decl)
}

// PoolSize включает pooled режим с пулом размера size.
// Остальные параметры пула берутся из DefaultPoolConfig.
func PoolSize(size int) StepOption {
	return func(s *stepDecl) {
		pool := domain.DefaultPoolConfig()
		pool.MaxSize = size
		if pool.MinSize > size {
			pool.MinSize = size
		}
		s.def.Config.ExecutionMode = domain.ExecutionModePooled
		s.def.Config.PoolConfig = &pool
	}
}

// MapReduceSpec — параметры шаблона map → reduce.
type MapReduceSpec struct {
	// MapName и ReduceName — имена шагов. По умолчанию "map" и "reduce".
	MapName    string
	ReduceName string

	MapperImage  string
	ReducerImage string

	// MaxParallel — потолок параллельных mapper'ов. По умолчанию 10.
	MaxParallel int

	// PoolSize — размер пула агентов mapper'а. Ноль — без пула.
	PoolSize int

	// Dynamic — число mapper'ов по размеру входа.
	Dynamic bool

	// DependsOn — зависимости map-шага (например, list-шаг).
	DependsOn []string

	// Map — настройки map-шага.
	Map *domain.MapConfig

	// Retry — политика retry mapper'а.
	Retry *domain.RetryPolicy

	// Timeout — таймаут workflow, если он ещё не задан. По умолчанию 30m.
	Timeout time.Duration
}

const (
	defaultMapReduceParallel = 10
	defaultMapReduceTimeout  = 30 * time.Minute
)

// MapReduce объявляет пару шагов: PARALLEL map и REDUCE, зависящий от него.
//
// Это единственное объявление, создающее больше одного узла графа.
// Если у workflow не заданы MaxParallel и Timeout, они берутся из spec.
func (b *Builder) MapReduce(spec MapReduceSpec) *Builder {
	if b.err != nil {
		return b
	}

	mapName := spec.MapName
	if mapName == "" {
		mapName = "map"
	}
	reduceName := spec.ReduceName
	if reduceName == "" {
		reduceName = "reduce"
	}
	maxParallel := spec.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMapReduceParallel
	}

	if b.def.Config.MaxParallel == 0 {
		b.def.Config.MaxParallel = maxParallel
	}
	if b.def.Config.Timeout == 0 {
		timeout := spec.Timeout
		if timeout <= 0 {
			timeout = defaultMapReduceTimeout
		}
		b.def.Config.Timeout = domain.Duration(timeout)
	}

	mapOpts := []StepOption{Image(spec.MapperImage), DependsOn(spec.DependsOn...)}
	if spec.PoolSize > 0 {
		mapOpts = append(mapOpts, PoolSize(spec.PoolSize))
	}
	if spec.Dynamic {
		mapOpts = append(mapOpts, Dynamic())
	}
	if spec.Map != nil {
		mapOpts = append(mapOpts, MapOver(*spec.Map))
	}
	if spec.Retry != nil {
		mapOpts = append(mapOpts, Retry(*spec.Retry))
	}

	return b.Parallel(mapName, maxParallel, mapOpts...).
		Step(reduceName, Image(spec.ReducerImage), Reduce(), DependsOn(mapName))
}

// declare проверяет объявление и добавляет шаг.
func (b *Builder) declare(decl *stepDecl) *Builder {
	step := decl.def
	step.Kind = decl.kind()
	if step.Config.Image == "" {
		step.Config.Image = defaultImage
	}

	if err := ValidateStep(&step); err != nil {
		b.err = err
		return b
	}

	if b.names[step.Name] {
		b.err = NewValidationError(step.Name, "name",
			fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateStepName)
		return b
	}

	// Зависимость должна указывать на уже объявленный шаг
	for _, dep := range step.DependsOn {
		if !b.names[dep] {
			b.err = NewValidationError(step.Name, "depends_on",
				fmt.Sprintf("depends on unknown step: %s", dep), ErrMissingDependency)
			return b
		}
	}

	b.def.Steps = append(b.def.Steps, step)
	b.names[step.Name] = true
	return b
}

// Err возвращает первую ошибку объявления.
func (b *Builder) Err() error {
	return b.err
}

// Build завершает объявление и возвращает провалидированное Definition.
func (b *Builder) Build() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}

	def := b.def
	def.Steps = append([]StepDef(nil), b.def.Steps...)

	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}
