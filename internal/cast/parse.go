package cast

import (
	"strconv"
	"strings"

	"github.com/simp-lee/goboot/internal/domain"
)

// StrCSV splits a comma-separated string into trimmed parts.
// An empty input returns nil.
func StrCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// IntCSV parses a comma-separated list of integers.
// An empty input returns nil.
func IntCSV(s string) ([]int64, error) {
	parts := StrCSV(s)
	if parts == nil {
		return nil, nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, domain.InvalidValuef("invalid int value '%s'", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// StrList normalises a decoded list of strings: elements are trimmed and
// passed through fn when it is non-nil (e.g. strings.ToUpper).
// Non-string elements or a non-list value fail with InvalidValue.
func StrList(value any, fn func(string) string) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	var items []any
	switch v := value.(type) {
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case []any:
		items = v
	default:
		return nil, domain.InvalidValuef("value is not a list '%v'", value)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, domain.InvalidValuef("list element is not a string '%v'", item)
		}
		s = strings.TrimSpace(s)
		if fn != nil {
			s = fn(s)
		}
		out = append(out, s)
	}
	return out, nil
}
