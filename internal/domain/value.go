package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind — JSON-тип значения состояния.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindBool   ValueKind = "bool"
	KindNumber ValueKind = "number"
	KindString ValueKind = "string"
	KindArray  ValueKind = "array"
	KindObject ValueKind = "object"
)

// Value — значение состояния workflow.
//
// Всё, что пересекает границу хранилища или HTTP API, хранится как Value
// (исходный JSON без потерь). Код, который работает с состоянием,
// декодирует его в типизированные структуры через Decode.
type Value json.RawMessage

// NewValue сериализует v в Value.
func NewValue(v any) (Value, error) {
	if raw, ok := v.(Value); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return Value(data), nil
}

// MustValue — как NewValue, но паникует. Для литералов в тестах и константах.
func MustValue(v any) Value {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind возвращает JSON-тип значения по первому значащему символу.
func (v Value) Kind() ValueKind {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 {
		return KindNull
	}
	switch trimmed[0] {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '[':
		return KindArray
	case '{':
		return KindObject
	default:
		return KindNumber
	}
}

// IsNull возвращает true для пустого значения и JSON null.
func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Decode декодирует значение в into.
func (v Value) Decode(into any) error {
	if v.IsNull() {
		return fmt.Errorf("decode value: %w", ErrNullValue)
	}
	if err := json.Unmarshal(v, into); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// String возвращает строку, если значение — JSON-строка, иначе исходный JSON.
func (v Value) String() string {
	if v.Kind() == KindString {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return string(v)
}

// MarshalJSON возвращает значение как есть; пустое значение — null.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON сохраняет копию исходного JSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	if v == nil {
		return fmt.Errorf("domain.Value: UnmarshalJSON on nil pointer")
	}
	*v = append((*v)[0:0], data...)
	return nil
}

// ParseValue оборачивает строку из хранилища в Value.
//
// Строки, которые не являются валидным JSON, сохраняются как JSON-строка:
// воркеры на других языках иногда кладут в хранилище "сырой" текст.
func ParseValue(s string) Value {
	if json.Valid([]byte(s)) {
		return Value(s)
	}
	return MustValue(s)
}
