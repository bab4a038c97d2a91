package mapreduce

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// DefaultItemsEnv — переменная окружения со списком элементов (JSON-массив).
const DefaultItemsEnv = "URLS_JSON"

// Sources — источники входа LIST в порядке приоритета:
// статический список → переменная окружения → файл.
// Используется первый источник, давший хотя бы один элемент.
type Sources struct {
	// Items — статический список из конфигурации.
	Items []string

	// Env — имя переменной окружения. Пусто — DefaultItemsEnv.
	Env string

	// File — путь к файлу: один элемент на строку, # — комментарий.
	File string
}

// List — фаза LIST: определяет входные элементы и записывает
// urls и total_items в состояние.
func List(ctx context.Context, st State, src Sources) ([]string, error) {
	items, origin, err := src.resolve()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}

	value, err := domain.NewValue(items)
	if err != nil {
		return nil, err
	}
	if err := st.Set(ctx, KeyItems, value); err != nil {
		return nil, fmt.Errorf("store items: %w", err)
	}
	if err := st.Set(ctx, KeyTotalItems, domain.MustValue(len(items))); err != nil {
		return nil, fmt.Errorf("store item count: %w", err)
	}

	telemetry.FromContext(ctx).Info("list phase completed", "items", len(items), "source", origin)
	return items, nil
}

func (s Sources) resolve() ([]string, string, error) {
	if items := clean(s.Items); len(items) > 0 {
		return items, "config", nil
	}

	env := s.Env
	if env == "" {
		env = DefaultItemsEnv
	}
	if raw := os.Getenv(env); raw != "" {
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", env, err)
		}
		if items = clean(items); len(items) > 0 {
			return items, "env", nil
		}
	}

	if s.File != "" {
		items, err := readItemsFile(s.File)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
		if len(items) > 0 {
			return items, "file", nil
		}
	}

	return nil, "", nil
}

// readItemsFile читает элементы из файла.
func readItemsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open items file: %w", err)
	}
	defer f.Close()

	var items []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}
	return items, nil
}

// clean убирает пустые элементы.
func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
