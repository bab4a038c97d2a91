package worker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/mapreduce"
)

// Переменные окружения, которые оркестратор передаёт воркеру.
const (
	EnvTaskTimeout = "TASK_TIMEOUT"
	EnvItemsFile   = "URLS_FILE"

	EnvRetryMaxAttempts = "TASK_RETRY_MAX_ATTEMPTS"
	EnvRetryBackoff     = "TASK_RETRY_BACKOFF"
	EnvRetryDelay       = "TASK_RETRY_DELAY"
)

// Config — параметры одного запуска воркера.
type Config struct {
	TaskID     string
	WorkflowID string
	StepID     string

	// TaskType — тип обработчика. Пустой — берётся из payload task.
	TaskType string

	// Timeout ограничивает работу обработчика. 0 — без ограничения.
	Timeout time.Duration

	// Items — источники списка для LIST-фазы.
	Items mapreduce.Sources

	// Retry — политика повторов MAP. nil — одна попытка,
	// если task не принёс свою retry_policy.
	Retry *domain.RetryPolicy
}

// ConfigFromEnv читает конфигурацию из окружения.
//
// TASK_ID обязателен. TASK_TYPE имеет приоритет над STEP_TYPE.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		TaskID:     strings.TrimSpace(os.Getenv(domain.EnvTaskID)),
		WorkflowID: os.Getenv(domain.EnvWorkflowID),
		StepID:     os.Getenv(domain.EnvStepID),
		TaskType:   os.Getenv(domain.EnvTaskType),
		Items: mapreduce.Sources{
			Env:  mapreduce.DefaultItemsEnv,
			File: os.Getenv(EnvItemsFile),
		},
	}
	if cfg.TaskID == "" {
		return cfg, ErrMissingTaskID
	}
	if cfg.TaskType == "" {
		cfg.TaskType = os.Getenv(domain.EnvStepType)
	}

	if raw := os.Getenv(EnvTaskTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid %s %q", EnvTaskTimeout, raw)
		}
		cfg.Timeout = d
	}

	retry, err := retryFromEnv()
	if err != nil {
		return cfg, err
	}
	cfg.Retry = retry
	return cfg, nil
}

// retryFromEnv собирает RetryPolicy из TASK_RETRY_*.
// Ни одной переменной — nil. Незаданные поля берутся из DefaultRetryPolicy.
func retryFromEnv() (*domain.RetryPolicy, error) {
	attempts := os.Getenv(EnvRetryMaxAttempts)
	backoff := os.Getenv(EnvRetryBackoff)
	delay := os.Getenv(EnvRetryDelay)
	if attempts == "" && backoff == "" && delay == "" {
		return nil, nil
	}

	p := domain.DefaultRetryPolicy()
	if attempts != "" {
		n, err := strconv.Atoi(attempts)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s %q", EnvRetryMaxAttempts, attempts)
		}
		p.MaxAttempts = n
	}
	if backoff != "" {
		switch kind := domain.BackoffKind(strings.ToLower(backoff)); kind {
		case domain.BackoffConstant, domain.BackoffLinear, domain.BackoffExponential:
			p.Backoff = kind
		default:
			return nil, fmt.Errorf("invalid %s %q", EnvRetryBackoff, backoff)
		}
	}
	if delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid %s %q", EnvRetryDelay, delay)
		}
		p.Delay = domain.Duration(d)
	}
	return &p, nil
}
