package mapreduce

import "errors"

// Ошибки фаз map/reduce.
var (
	// ErrEmptyInput — LIST не нашёл ни одного элемента.
	// Ноль map-tasks считается ошибкой конфигурации.
	ErrEmptyInput = errors.New("no input items resolved")

	// ErrNoItem — map-task не смог определить свой элемент.
	ErrNoItem = errors.New("map item not resolved")

	// ErrItemIndexOutOfRange — индекс элемента за пределами списка.
	ErrItemIndexOutOfRange = errors.New("map item index out of range")

	// ErrNoMapOutput — обе accumulation lists пусты.
	ErrNoMapOutput = errors.New("no map results and no map errors")

	// ErrRequest — не удалось получить данные элемента.
	ErrRequest = errors.New("request failed")
)
