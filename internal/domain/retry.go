package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BackoffKind — стратегия задержки между попытками.
type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
	defaultRetryMaxDelay = 5 * time.Minute
)

// RetryPolicy — политика повторных попыток выполнения task.
//
// Управляет только retry отдельной попытки на стороне воркера,
// не перезапуском зависимостей workflow.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts" validate:"gte=1"`

	// Backoff — стратегия задержки: "constant", "linear", "exponential".
	Backoff BackoffKind `json:"backoff" validate:"oneof=constant linear exponential"`

	// Delay — базовая задержка.
	Delay Duration `json:"delay"`

	// MaxDelay — потолок задержки. Ноль означает 5 минут.
	MaxDelay Duration `json:"max_delay,omitempty"`
}

// DefaultRetryPolicy возвращает политику по умолчанию: 3 попытки, exponential, 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		Backoff:     BackoffExponential,
		Delay:       Duration(defaultRetryDelay),
	}
}

// Attempts возвращает число попыток, не меньше 1.
func (p *RetryPolicy) Attempts() int {
	if p == nil || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// BackoffFor вычисляет задержку перед попыткой attempt+1 после неудачной попытки attempt.
//
//	constant:    delay
//	linear:      delay * attempt
//	exponential: delay * 2^(attempt-1)
//
// Результат ограничен MaxDelay. Nil policy даёт 1s.
func (p *RetryPolicy) BackoffFor(attempt int) time.Duration {
	if p == nil {
		return defaultRetryDelay
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Delay.Std()
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	maxDelay := p.MaxDelay.Std()
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}

	switch p.Backoff {
	case BackoffLinear:
		delay *= time.Duration(attempt)
	case BackoffExponential:
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	}

	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Duration — time.Duration, который сериализуется строкой Go ("2s", "30m").
//
// При разборе принимает также число секунд.
type Duration time.Duration

// Std возвращает значение как time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String возвращает строку в формате time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON сериализует Duration в строку.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON принимает "1m30s" или число секунд.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	case string:
		if v == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}
