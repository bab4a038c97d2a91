package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
)

func TestBuilder_KindInference(t *testing.T) {
	def, err := NewWorkflow("kinds").
		Step("plain").
		Step("fan", AsParallel(5), DependsOn("plain")).
		Step("agg", Reduce(), AsParallel(3), DependsOn("fan")).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]domain.StepKind{
		"plain": domain.StepKindSequential,
		"fan":   domain.StepKindParallel,
		"agg":   domain.StepKindReduce, // reduce важнее parallel
	}
	for name, want := range tests {
		if got := def.Step(name).Kind; got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
	if def.Step("fan").Config.MaxWorkers != 5 {
		t.Errorf("expected max_workers 5, got %d", def.Step("fan").Config.MaxWorkers)
	}
	if def.Step("plain").Config.Image != defaultImage {
		t.Errorf("expected default image, got %q", def.Step("plain").Config.Image)
	}
}

func TestBuilder_ReduceWithoutDepsFailsAtDeclaration(t *testing.T) {
	b := NewWorkflow("wf").Step("agg", Reduce())

	// Ошибка видна сразу после объявления, до Build
	if !errors.Is(b.Err(), ErrReduceWithoutDeps) {
		t.Fatalf("expected ErrReduceWithoutDeps, got %v", b.Err())
	}

	var vErr *ValidationError
	if !errors.As(b.Err(), &vErr) {
		t.Fatalf("expected ValidationError, got %T", b.Err())
	}
	if vErr.StepID != "agg" || vErr.Field != "depends_on" {
		t.Errorf("unexpected error context: %+v", vErr)
	}
}

func TestBuilder_StickyError(t *testing.T) {
	b := NewWorkflow("wf").
		Step("a").
		Step("a").
		Step("b", Reduce())

	if !errors.Is(b.Err(), ErrDuplicateStepName) {
		t.Fatalf("expected first error to stick, got %v", b.Err())
	}

	def, err := b.Build()
	if def != nil || !errors.Is(err, ErrDuplicateStepName) {
		t.Errorf("expected Build to return sticky error, got %v", err)
	}
}

func TestBuilder_DeclarationErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		want  error
	}{
		{"empty workflow name", func() *Builder { return NewWorkflow(" ") }, ErrEmptyWorkflowName},
		{"empty step name", func() *Builder { return NewWorkflow("wf").Step("") }, ErrEmptyStepName},
		{"self dependency", func() *Builder { return NewWorkflow("wf").Step("a", DependsOn("a")) }, ErrSelfDependency},
		{"unknown dependency", func() *Builder { return NewWorkflow("wf").Step("a", DependsOn("later")) }, ErrMissingDependency},
		{"bad retry", func() *Builder {
			return NewWorkflow("wf").Step("a", Retry(domain.RetryPolicy{MaxAttempts: 0, Backoff: domain.BackoffConstant}))
		}, ErrInvalidConfig},
		{"bad backoff", func() *Builder {
			return NewWorkflow("wf").Step("a", Retry(domain.RetryPolicy{MaxAttempts: 2, Backoff: "random"}))
		}, ErrInvalidConfig},
		{"pool smaller than min", func() *Builder {
			return NewWorkflow("wf").Step("a", Pooled(domain.PoolConfig{MinSize: 5, MaxSize: 2}))
		}, ErrInvalidConfig},
		{"pool without pooled mode", func() *Builder {
			return NewWorkflow("wf").Step("a", Pooled(domain.DefaultPoolConfig()), func(s *stepDecl) {
				s.def.Config.ExecutionMode = domain.ExecutionModeStandard
			})
		}, ErrPoolWithoutPooledMode},
		{"bad failure strategy", func() *Builder {
			return NewWorkflow("wf", FailureStrategy("retry_forever"))
		}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Err()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuilder_EmptyWorkflow(t *testing.T) {
	_, err := NewWorkflow("empty").Build()
	if !errors.Is(err, ErrEmptySteps) {
		t.Errorf("expected ErrEmptySteps, got %v", err)
	}
}

func TestBuilder_PreservesDeclarationOrder(t *testing.T) {
	def, err := NewWorkflow("order").
		Step("zulu").
		Step("alpha").
		Step("mike").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"zulu", "alpha", "mike"}
	if got := def.StepNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuilder_Parallel(t *testing.T) {
	def, err := NewWorkflow("wf").
		Step("list").
		Parallel("fan", 20, DependsOn("list"), Dynamic(), PoolSize(4)).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fan := def.Step("fan")
	if fan.Kind != domain.StepKindParallel {
		t.Errorf("expected parallel, got %s", fan.Kind)
	}
	if fan.Config.MaxWorkers != 20 || !fan.Config.Dynamic {
		t.Errorf("unexpected config: %+v", fan.Config)
	}
	if fan.Config.ExecutionMode != domain.ExecutionModePooled {
		t.Errorf("expected pooled mode, got %s", fan.Config.ExecutionMode)
	}
	if fan.Config.PoolConfig == nil || fan.Config.PoolConfig.MaxSize != 4 {
		t.Errorf("expected pool max size 4, got %+v", fan.Config.PoolConfig)
	}
}

func TestBuilder_ParallelStandard(t *testing.T) {
	def, err := NewWorkflow("wf").Parallel("fan", 3, Standard()).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Step("fan").Config.ExecutionMode != domain.ExecutionModeStandard {
		t.Errorf("expected standard mode")
	}
}

func TestBuilder_MapReduceExpandsToTwoSteps(t *testing.T) {
	def, err := NewWorkflow("wordcount").
		Step("list", Image("lister")).
		MapReduce(MapReduceSpec{
			MapperImage:  "mapper:latest",
			ReducerImage: "reducer:latest",
			MaxParallel:  20,
			PoolSize:     5,
			DependsOn:    []string{"list"},
		}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(def.Steps) != 3 {
		t.Fatalf("expected list + 2 mapreduce steps, got %d", len(def.Steps))
	}

	m := def.Step("map")
	r := def.Step("reduce")
	if m == nil || r == nil {
		t.Fatalf("expected map and reduce steps, got %v", def.StepNames())
	}
	if m.Kind != domain.StepKindParallel || r.Kind != domain.StepKindReduce {
		t.Errorf("unexpected kinds: map=%s reduce=%s", m.Kind, r.Kind)
	}
	if !reflect.DeepEqual(r.DependsOn, []string{"map"}) {
		t.Errorf("reduce should depend on map, got %v", r.DependsOn)
	}
	if !reflect.DeepEqual(m.DependsOn, []string{"list"}) {
		t.Errorf("map should depend on list, got %v", m.DependsOn)
	}
	if m.Config.Image != "mapper:latest" || r.Config.Image != "reducer:latest" {
		t.Errorf("unexpected images: %s / %s", m.Config.Image, r.Config.Image)
	}
	if def.Config.MaxParallel != 20 || def.Config.Timeout.Std() != 30*time.Minute {
		t.Errorf("unexpected workflow config: %+v", def.Config)
	}
}

func TestBuilder_MapReduceOnly(t *testing.T) {
	def, err := NewWorkflow("mr").
		MapReduce(MapReduceSpec{MapName: "count", ReduceName: "sum", MapperImage: "m", ReducerImage: "r"}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(def.Steps) != 2 {
		t.Fatalf("expected exactly 2 steps, got %d", len(def.Steps))
	}
	if def.Steps[1].Name != "sum" || def.Steps[1].DependsOn[0] != "count" {
		t.Errorf("unexpected reduce step: %+v", def.Steps[1])
	}
}

func TestBuilder_WorkflowOptions(t *testing.T) {
	policy := domain.DefaultRetryPolicy()
	def, err := NewWorkflow("opts",
		Description("nightly crawl"),
		MaxParallel(4),
		Timeout(time.Hour),
		WorkflowRetry(policy),
		FailureStrategy(domain.FailureStrategyContinue),
		CleanupPolicy("on_success"),
	).Step("a", Env("K", "V"), Command("run", "--fast"), StepTimeout(time.Minute)).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Description != "nightly crawl" || def.Config.MaxParallel != 4 {
		t.Errorf("unexpected definition: %+v", def)
	}
	if def.Config.EffectiveFailureStrategy() != domain.FailureStrategyContinue {
		t.Errorf("expected continue strategy")
	}
	a := def.Step("a")
	if a.Config.EnvVars["K"] != "V" || len(a.Config.Command) != 2 || a.Config.Timeout.Std() != time.Minute {
		t.Errorf("unexpected step config: %+v", a.Config)
	}
}

func TestCompile(t *testing.T) {
	def, err := NewWorkflow("wf", Description("d")).
		Step("list", StepDescription("collect urls")).
		MapReduce(MapReduceSpec{MapperImage: "m", ReducerImage: "r", DependsOn: []string{"list"}}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Name != "wf" || req.Description != "d" {
		t.Errorf("unexpected request: %+v", req)
	}
	if len(req.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(req.Steps))
	}
	for i, name := range []string{"list", "map", "reduce"} {
		if req.Steps[i].ID != name || req.Steps[i].Name != name {
			t.Errorf("step %d: expected %s, got id=%s name=%s", i, name, req.Steps[i].ID, req.Steps[i].Name)
		}
		if req.Steps[i].Status != domain.StepStatusPending {
			t.Errorf("step %d: expected pending status", i)
		}
	}
	if req.Steps[0].Metadata["description"] != "collect urls" {
		t.Errorf("expected description in metadata, got %v", req.Steps[0].Metadata)
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(&Definition{Name: "x"})
	if !errors.Is(err, ErrEmptySteps) {
		t.Errorf("expected ErrEmptySteps, got %v", err)
	}
}
