package cli

import (
	"fmt"
	"strings"

	"github.com/shaiso/Flowkit/internal/domain"
)

// parsePairs разбирает значения вида KEY=VALUE.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", p)
		}
		out[key] = value
	}
	return out, nil
}

// parseInputs разбирает KEY=VALUE, где VALUE — JSON или обычный текст.
func parseInputs(pairs []string) (map[string]domain.Value, error) {
	raw, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Value, len(raw))
	for k, v := range raw {
		out[k] = domain.ParseValue(v)
	}
	return out, nil
}
