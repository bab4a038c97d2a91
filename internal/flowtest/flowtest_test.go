package flowtest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Flowkit/internal/client"
	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/engine"
)

func diamond(t *testing.T, opts ...engine.WorkflowOption) *engine.Definition {
	t.Helper()
	def, err := engine.NewWorkflow("etl", opts...).
		Step("extract").
		Step("b", engine.DependsOn("extract")).
		Step("a", engine.DependsOn("extract")).
		Step("load", engine.DependsOn("a", "b")).
		Build()
	require.NoError(t, err)
	return def
}

func newRunner(t *testing.T, def *engine.Definition) *Runner {
	t.Helper()
	r, err := NewRunner(def)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func noop(context.Context, *client.StepContext) (any, error) { return nil, nil }

func TestRunner_RunsInDependencyOrder(t *testing.T) {
	r := newRunner(t, diamond(t))
	r.Step("extract", func(ctx context.Context, sc *client.StepContext) (any, error) {
		var source string
		if err := sc.State().GetInto(ctx, "source", &source); err != nil {
			return nil, err
		}
		return []string{source + "/1", source + "/2"}, nil
	}).
		Step("b", func(ctx context.Context, sc *client.StepContext) (any, error) {
			prev, err := sc.PreviousResults(ctx, "extract")
			if err != nil {
				return nil, err
			}
			var rows []string
			if err := prev.Decode(&rows); err != nil {
				return nil, err
			}
			return len(rows), nil
		}).
		Step("a", noop).
		Step("load", func(ctx context.Context, sc *client.StepContext) (any, error) {
			return nil, sc.State().Set(ctx, "loaded", true)
		})

	report, err := r.Run(context.Background(), map[string]any{"source": "s3://bucket"})
	require.NoError(t, err)

	assert.Equal(t, domain.WorkflowStatusCompleted, report.Status)
	assert.Equal(t, []string{"extract", "b", "a", "load"}, report.Executed)
	AssertStepResult(t, report, "extract", []string{"s3://bucket/1", "s3://bucket/2"})
	AssertStepResult(t, report, "b", 2)
	AssertStateEqual(t, report, "loaded", true)
	AssertStateContains(t, report, client.ResultsKey("extract"))
	AssertStepStatus(t, report, "load", domain.StepStatusCompleted)

	// Шаг без результата ничего не пишет
	_, ok := report.Results["a"]
	assert.False(t, ok)
	assert.Equal(t, int64(4), r.State().Counter(client.KeyStepsCompleted))
}

func TestRunner_FailFastSkipsRemainingSteps(t *testing.T) {
	boom := errors.New("source unavailable")
	r := newRunner(t, diamond(t))
	r.Step("extract", func(context.Context, *client.StepContext) (any, error) { return nil, boom }).
		Step("a", noop).Step("b", noop).Step("load", noop)

	report, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var wfErr *client.WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, DefaultWorkflowID, wfErr.WorkflowID)
	var stepErr *client.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "extract", stepErr.StepID)

	assert.Equal(t, domain.WorkflowStatusFailed, report.Status)
	assert.Equal(t, []string{"extract"}, report.Executed)
	AssertStepStatus(t, report, "extract", domain.StepStatusFailed)
	AssertStepStatus(t, report, "load", domain.StepStatusSkipped)
	assert.Contains(t, report.Errors["extract"], "extract")

	errs, err := r.State().List(context.Background(), client.KeyStepErrors)
	require.NoError(t, err)
	assert.Len(t, errs, 1)
	assert.Equal(t, int64(1), r.State().Counter(client.KeyStepsFailed))
}

func TestRunner_ContinueRunsIndependentBranches(t *testing.T) {
	r := newRunner(t, diamond(t, engine.FailureStrategy(domain.FailureStrategyContinue)))
	r.Step("extract", noop).
		Step("b", func(context.Context, *client.StepContext) (any, error) { return nil, errors.New("bad row") }).
		Step("a", func(context.Context, *client.StepContext) (any, error) { return "ok", nil }).
		Step("load", noop)

	report, err := r.Run(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, []string{"extract", "b", "a"}, report.Executed)
	AssertStepStatus(t, report, "a", domain.StepStatusCompleted)
	AssertStepStatus(t, report, "b", domain.StepStatusFailed)
	AssertStepStatus(t, report, "load", domain.StepStatusSkipped)
	AssertStepResult(t, report, "a", "ok")
}

func TestRunner_StepWithoutImplementation(t *testing.T) {
	r := newRunner(t, diamond(t))
	r.Step("extract", noop)

	report, err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoStepFunc)
	assert.Equal(t, []string{"extract", "b"}, report.Executed)
}

func TestRunner_UnknownStep(t *testing.T) {
	r := newRunner(t, diamond(t))
	r.Step("transform", noop)

	_, err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownStep)

	_, err = r.RunStep(context.Background(), "transform")
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestRunner_CancelledContext(t *testing.T) {
	r := newRunner(t, diamond(t))
	r.Step("extract", noop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Executed)
}

func TestRunner_AgentsFollowConfiguredOutcome(t *testing.T) {
	def, err := engine.NewWorkflow("crawl").Step("scrape").Build()
	require.NoError(t, err)

	r := newRunner(t, def)
	r.Agents().Configure("scraper:broken", AgentOutcome{Status: domain.AgentStatusFailed, Logs: "timeout"})
	r.Step("scrape", func(ctx context.Context, sc *client.StepContext) (any, error) {
		statuses := map[string]domain.StepStatus{}
		for _, image := range []string{"scraper:ok", "scraper:broken"} {
			agent, err := sc.DeployAgent(ctx, domain.DeployAgentRequest{Name: "w", Image: image})
			if err != nil {
				return nil, err
			}
			res, err := agent.Wait(ctx, 0)
			if err != nil {
				return nil, err
			}
			statuses[image] = res.Status
		}
		return statuses, nil
	})

	report, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	AssertStepResult(t, report, "scrape", map[string]string{"scraper:ok": "completed", "scraper:broken": "failed"})

	deployed := r.Agents().Deployed()
	require.Len(t, deployed, 2)
	for _, a := range deployed {
		assert.Equal(t, DefaultWorkflowID, a.EnvVars[domain.EnvWorkflowID])
		assert.Equal(t, "scrape", a.EnvVars[domain.EnvStepID])
		assert.True(t, a.Status.IsFinished(), "agent %s left running", a.ID)
	}

	logs, err := client.New(r.Agents().URL()).GetAgentLogs(context.Background(), deployed[1].ID, false)
	require.NoError(t, err)
	assert.Equal(t, "timeout", logs)
}

func TestRunner_RunStepUsesCurrentState(t *testing.T) {
	r := newRunner(t, diamond(t))
	r.Step("load", func(ctx context.Context, sc *client.StepContext) (any, error) {
		n, err := sc.State().Increment(ctx, "loads", 1)
		return fmt.Sprintf("load #%d", n), err
	})

	ctx := context.Background()
	_, err := r.RunStep(ctx, "load")
	require.NoError(t, err)
	out, err := r.RunStep(ctx, "load")
	require.NoError(t, err)
	assert.JSONEq(t, `"load #2"`, string(out))
}

func TestMemoryState_Semantics(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryState("wf")

	_, err := st.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	proxy := client.NewStateProxy(st)
	v, err := proxy.GetDefault(ctx, "missing", domain.MustValue(7))
	require.NoError(t, err)
	assert.JSONEq(t, "7", string(v))

	require.NoError(t, st.Append(ctx, "rows", domain.MustValue("a")))
	items, err := st.List(ctx, "rows")
	require.NoError(t, err)
	items[0] = domain.MustValue("changed")

	again, err := st.List(ctx, "rows")
	require.NoError(t, err)
	assert.JSONEq(t, `"a"`, string(again[0]), "List must return a copy")

	// Счётчики и скалярные ключи не пересекаются
	_, err = st.Increment(ctx, "n", 2)
	require.NoError(t, err)
	_, err = st.Get(ctx, "n")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

// recordingT собирает сообщения о провале проверки.
type recordingT struct {
	failures []string
}

func (r *recordingT) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestAssertions_ReportFailures(t *testing.T) {
	report := &Report{
		Executed: []string{"extract"},
		Steps:    map[string]domain.StepStatus{"extract": domain.StepStatusCompleted},
		Results:  map[string]domain.Value{"extract": domain.MustValue(3)},
		State:    map[string]domain.Value{"source": domain.MustValue("s3://x")},
	}

	rt := &recordingT{}
	assert.False(t, AssertStepExecuted(rt, report, "load"))
	assert.False(t, AssertStateContains(rt, report, "loaded"))
	assert.False(t, AssertStateEqual(rt, report, "source", "s3://y"))
	assert.False(t, AssertStepResult(rt, report, "extract", 4))
	assert.False(t, AssertStepResult(rt, report, "load", nil))
	assert.Len(t, rt.failures, 5)

	ok := &recordingT{}
	assert.True(t, AssertStepExecuted(ok, report, "extract"))
	assert.True(t, AssertStateEqual(ok, report, "source", "s3://x"))
	assert.True(t, AssertStepResult(ok, report, "extract", 3))
	assert.Empty(t, ok.failures)
}
