package mapreduce

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Flowkit/internal/domain"
)

const (
	// DefaultItemAlias — поле входа task с текущим элементом.
	DefaultItemAlias = "current_url"

	// indexInput — поле входа task с индексом элемента.
	indexInput = "_map_index"
)

// ResolveItem определяет элемент map-task.
//
// Порядок:
//  1. поле входа alias (строка или объект {"url": ...});
//  2. индекс из task.Index, поля "_map_index" или хвоста ID вида "task-N"
//     как позиция в списке urls.
//
// Без индекса и поля возвращается ErrNoItem: подставлять нулевой
// элемент по умолчанию нельзя, иначе все tasks обработают одно и то же.
func ResolveItem(ctx context.Context, task *domain.Task, st State, alias string) (Item, error) {
	if alias == "" {
		alias = DefaultItemAlias
	}

	index, hasIndex := itemIndex(task)

	if v, ok := task.InputValue(alias); ok {
		if url, ok := itemURL(v); ok {
			item := Item{URL: url, Index: -1}
			if hasIndex {
				item.Index = index
			}
			return item, nil
		}
	}

	if !hasIndex {
		return Item{}, fmt.Errorf("task %s: %w", task.ID, ErrNoItem)
	}

	raw, err := st.Get(ctx, KeyItems)
	if err != nil {
		return Item{}, fmt.Errorf("task %s: read items: %w", task.ID, err)
	}
	var items []string
	if err := raw.Decode(&items); err != nil {
		return Item{}, fmt.Errorf("task %s: decode items: %w", task.ID, err)
	}

	if index < 0 || index >= len(items) {
		return Item{}, fmt.Errorf("task %s: index %d of %d: %w", task.ID, index, len(items), ErrItemIndexOutOfRange)
	}
	return Item{URL: items[index], Index: index}, nil
}

// itemURL извлекает адрес из строки или объекта {"url": ...}.
func itemURL(v domain.Value) (string, bool) {
	switch v.Kind() {
	case domain.KindString:
		s := strings.TrimSpace(v.String())
		return s, s != ""
	case domain.KindObject:
		var obj struct {
			URL string `json:"url"`
		}
		if err := v.Decode(&obj); err != nil || obj.URL == "" {
			return "", false
		}
		return obj.URL, true
	default:
		return "", false
	}
}

// itemIndex возвращает индекс элемента task.
func itemIndex(task *domain.Task) (int, bool) {
	if task.Index != nil {
		return *task.Index, true
	}

	if v, ok := task.InputValue(indexInput); ok {
		var n int
		if err := v.Decode(&n); err == nil {
			return n, true
		}
		if n, err := strconv.Atoi(v.String()); err == nil {
			return n, true
		}
	}

	// Только точная форма task-<цифры>: в составных ID оркестратора
	// последний сегмент — метка времени, а не индекс.
	if rest, ok := strings.CutPrefix(task.ID, "task-"); ok && isDigits(rest) {
		if n, err := strconv.Atoi(rest); err == nil {
			return n, true
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
