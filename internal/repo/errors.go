package repo

import "errors"

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrNotTerminal — архивировать можно только завершённый workflow.
	ErrNotTerminal = errors.New("workflow is not finished")
)
