package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestWorkflowStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to WorkflowStatus
		want     bool
	}{
		{WorkflowStatusPending, WorkflowStatusRunning, true},
		{WorkflowStatusPending, WorkflowStatusCancelled, true},
		{WorkflowStatusRunning, WorkflowStatusCompleted, true},
		{WorkflowStatusRunning, WorkflowStatusFailed, true},
		{WorkflowStatusRunning, WorkflowStatusPending, false},
		{WorkflowStatusCompleted, WorkflowStatusRunning, false},
		{WorkflowStatusFailed, WorkflowStatusCompleted, false},
		{WorkflowStatusCancelled, WorkflowStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParseWorkflowStatus(t *testing.T) {
	got, ok := ParseWorkflowStatus("RUNNING")
	if !ok || got != WorkflowStatusRunning {
		t.Errorf("expected running, got %q (ok=%v)", got, ok)
	}
	if _, ok := ParseWorkflowStatus("unknown"); ok {
		t.Error("unknown status should not parse")
	}
}

func TestStepStatus_IsUnsuccessful(t *testing.T) {
	if StepStatusCompleted.IsUnsuccessful() {
		t.Error("completed is successful")
	}
	if !StepStatusSkipped.IsUnsuccessful() {
		t.Error("skipped should be unsuccessful")
	}
	if StepStatusRunning.IsUnsuccessful() {
		t.Error("running is not terminal")
	}
}

func TestRetryPolicy_BackoffFor(t *testing.T) {
	tests := []struct {
		name    string
		policy  *RetryPolicy
		attempt int
		want    time.Duration
	}{
		{"nil policy", nil, 3, time.Second},
		{"constant", &RetryPolicy{Backoff: BackoffConstant, Delay: Duration(2 * time.Second)}, 4, 2 * time.Second},
		{"linear", &RetryPolicy{Backoff: BackoffLinear, Delay: Duration(time.Second)}, 3, 3 * time.Second},
		{"exponential 1", &RetryPolicy{Backoff: BackoffExponential, Delay: Duration(time.Second)}, 1, time.Second},
		{"exponential 4", &RetryPolicy{Backoff: BackoffExponential, Delay: Duration(time.Second)}, 4, 8 * time.Second},
		{"capped", &RetryPolicy{Backoff: BackoffExponential, Delay: Duration(time.Second), MaxDelay: Duration(5 * time.Second)}, 10, 5 * time.Second},
		{"zero delay", &RetryPolicy{Backoff: BackoffExponential}, 1, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.BackoffFor(tt.attempt); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 3 || p.Backoff != BackoffExponential || p.Delay.Std() != time.Second {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestDuration_JSON(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"1m30s"` {
		t.Errorf("expected \"1m30s\", got %s", data)
	}

	var d Duration
	if err := json.Unmarshal([]byte(`"2s"`), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Std() != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}

	if err := json.Unmarshal([]byte(`30`), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Std() != 30*time.Second {
		t.Errorf("expected 30s, got %v", d)
	}

	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValue_Kind(t *testing.T) {
	tests := map[string]ValueKind{
		``:         KindNull,
		`null`:     KindNull,
		`true`:     KindBool,
		`12.5`:     KindNumber,
		`-3`:       KindNumber,
		`"x"`:      KindString,
		` [1,2]`:   KindArray,
		`{"a": 1}`: KindObject,
	}
	for raw, want := range tests {
		if got := Value(raw).Kind(); got != want {
			t.Errorf("%q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestValue_Decode(t *testing.T) {
	v := MustValue(map[string]any{"url": "https://a", "n": 3})

	var out struct {
		URL string `json:"url"`
		N   int    `json:"n"`
	}
	if err := v.Decode(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.URL != "https://a" || out.N != 3 {
		t.Errorf("unexpected decode result: %+v", out)
	}

	var s string
	if err := Value("null").Decode(&s); !errors.Is(err, ErrNullValue) {
		t.Errorf("expected ErrNullValue, got %v", err)
	}
}

func TestValue_RoundTripInsideStruct(t *testing.T) {
	req := UpdateStateRequest{Key: "urls", Value: MustValue([]string{"a", "b"})}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"key":"urls","value":["a","b"]}` {
		t.Errorf("unexpected json: %s", data)
	}

	var back UpdateStateRequest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Value.Kind() != KindArray {
		t.Errorf("expected array, got %s", back.Value.Kind())
	}
}

func TestParseValue_RawText(t *testing.T) {
	if got := ParseValue("42"); got.Kind() != KindNumber {
		t.Errorf("expected number, got %s", got.Kind())
	}
	raw := ParseValue("plain text")
	if raw.Kind() != KindString || raw.String() != "plain text" {
		t.Errorf("expected string value, got %s", raw)
	}
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask("task-1", []byte(`{"task_id":"task-1","workflow_id":"wf","type":"map","input":{"current_url":"https://a"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.WorkflowID != "wf" || task.Type != "map" {
		t.Errorf("unexpected task: %+v", task)
	}
	v, ok := task.InputValue("current_url")
	if !ok || v.String() != "https://a" {
		t.Errorf("expected current_url, got %s", v)
	}
}

func TestParseTask_FlatPayload(t *testing.T) {
	task, err := ParseTask("task-7", []byte(`{"current_url":{"url":"https://b","url_id":2}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "task-7" {
		t.Errorf("expected id from key, got %q", task.ID)
	}
	if _, ok := task.InputValue("current_url"); !ok {
		t.Error("flat payload should become input")
	}
}

func TestParseTask_Invalid(t *testing.T) {
	if _, err := ParseTask("x", []byte(`not json`)); err == nil {
		t.Error("expected error for invalid payload")
	}
}

func TestDeployAgentRequest_WithEnv(t *testing.T) {
	req := DeployAgentRequest{Name: "a", Image: "img", EnvVars: map[string]string{"A": "1", EnvStepID: "old"}}
	got := req.WithEnv(map[string]string{EnvWorkflowID: "wf", EnvStepID: "s"})

	if got.EnvVars["A"] != "1" || got.EnvVars[EnvWorkflowID] != "wf" || got.EnvVars[EnvStepID] != "s" {
		t.Errorf("unexpected env: %v", got.EnvVars)
	}
	if req.EnvVars[EnvStepID] != "old" {
		t.Error("original request must not be modified")
	}
}

func TestDeployAgentRequest_Tagged(t *testing.T) {
	req := DeployAgentRequest{Name: "a", Image: "img", WorkflowID: "wf", StepID: "map"}
	got := req.Tagged()
	if got.EnvVars[EnvWorkflowID] != "wf" || got.EnvVars[EnvStepID] != "map" {
		t.Errorf("unexpected env: %v", got.EnvVars)
	}
	if req.EnvVars != nil {
		t.Error("original request must not be modified")
	}

	onlyStep := DeployAgentRequest{StepID: "reduce"}.Tagged()
	if _, ok := onlyStep.EnvVars[EnvWorkflowID]; ok || onlyStep.EnvVars[EnvStepID] != "reduce" {
		t.Errorf("unexpected env: %v", onlyStep.EnvVars)
	}

	if untagged := (DeployAgentRequest{Name: "b"}).Tagged(); untagged.EnvVars != nil {
		t.Errorf("expected no env, got %v", untagged.EnvVars)
	}
}

func TestWorkflow_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	wf := Workflow{CreatedAt: start.Add(-time.Minute), StartedAt: &start, CompletedAt: &end}

	if got := wf.Duration(time.Now()); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}

	wf.CompletedAt = nil
	if got := wf.Duration(start.Add(10 * time.Second)); got != 10*time.Second {
		t.Errorf("expected 10s for running workflow, got %v", got)
	}
}

func TestWorkflowConfig_EffectiveFailureStrategy(t *testing.T) {
	if got := (WorkflowConfig{}).EffectiveFailureStrategy(); got != FailureStrategyFailFast {
		t.Errorf("expected fail_fast default, got %s", got)
	}
}
