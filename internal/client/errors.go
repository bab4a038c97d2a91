package client

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors клиента.
var (
	// ErrTimeout — ожидание завершилось по таймауту.
	ErrTimeout = errors.New("timed out")

	// ErrUnsupported — операция не поддерживается backend'ом состояния.
	ErrUnsupported = errors.New("operation not supported by state backend")

	// ErrNotDeployed — агент ещё не развёрнут.
	ErrNotDeployed = errors.New("agent not deployed")
)

// ClientError — ошибка обращения к API.
//
// Для ответа с кодом ≥400 заполнены StatusCode и Message.
// Для сетевой ошибки StatusCode == 0, а Err содержит ошибку транспорта.
type ClientError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsNotFound возвращает true для ответа 404.
func IsNotFound(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.StatusCode == 404
}

// WorkflowError — ошибка уровня workflow.
type WorkflowError struct {
	WorkflowID string
	Message    string
	Err        error
}

func (e *WorkflowError) Error() string {
	if e.WorkflowID == "" {
		return "workflow: " + e.Message
	}
	return fmt.Sprintf("workflow %s: %s", e.WorkflowID, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// StepError — ошибка выполнения шага.
type StepError struct {
	StepID  string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s", e.StepID, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StateError — ошибка операции над состоянием workflow.
type StateError struct {
	Op  string
	Key string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TimeoutError — ожидание не уложилось в таймаут.
// errors.Is(err, ErrTimeout) == true.
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.What, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
