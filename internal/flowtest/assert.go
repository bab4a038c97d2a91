package flowtest

import (
	"slices"

	"github.com/stretchr/testify/assert"

	"github.com/shaiso/Flowkit/internal/domain"
)

type tHelper interface {
	Helper()
}

// AssertStepExecuted проверяет, что шаг запускался.
func AssertStepExecuted(t assert.TestingT, r *Report, step string) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if slices.Contains(r.Executed, step) {
		return true
	}
	return assert.Fail(t, "step was not executed", "step %q, executed: %v", step, r.Executed)
}

// AssertStepStatus проверяет итоговый статус шага.
func AssertStepStatus(t assert.TestingT, r *Report, step string, want domain.StepStatus) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return assert.Equal(t, want, r.Steps[step], "status of step %q", step)
}

// AssertStateContains проверяет наличие ключа в состоянии.
func AssertStateContains(t assert.TestingT, r *Report, key string) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if _, ok := r.State[key]; ok {
		return true
	}
	return assert.Fail(t, "state key not found", "key %q, state keys: %v", key, stateKeys(r))
}

// AssertStateEqual сравнивает значение ключа с expected как JSON.
func AssertStateEqual(t assert.TestingT, r *Report, key string, expected any) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	actual, ok := r.State[key]
	if !ok {
		return assert.Fail(t, "state key not found", "key %q, state keys: %v", key, stateKeys(r))
	}
	return jsonEqual(t, expected, actual, "state key "+key)
}

// AssertStepResult сравнивает результат шага с expected как JSON.
func AssertStepResult(t assert.TestingT, r *Report, step string, expected any) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	actual, ok := r.Results[step]
	if !ok {
		return assert.Fail(t, "no result for step", "step %q", step)
	}
	return jsonEqual(t, expected, actual, "result of step "+step)
}

func jsonEqual(t assert.TestingT, expected any, actual domain.Value, what string) bool {
	want, err := domain.NewValue(expected)
	if err != nil {
		return assert.Fail(t, "cannot encode expected value", "%s: %v", what, err)
	}
	return assert.JSONEq(t, string(want), string(actual), what)
}

func stateKeys(r *Report) []string {
	keys := make([]string, 0, len(r.State))
	for k := range r.State {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
