package domain

import "errors"

// Общие ошибки модели.
var (
	// ErrNullValue возвращается при попытке декодировать null.
	ErrNullValue = errors.New("value is null")

	// ErrKeyNotFound — ключ отсутствует в состоянии workflow.
	ErrKeyNotFound = errors.New("state key not found")
)
