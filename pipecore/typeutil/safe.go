// Package typeutil provides safe type extraction helpers for loosely-typed
// LLM output maps. All helpers use the comma-ok idiom; the coercing variants
// additionally accept the string-encoded forms models frequently emit.
package typeutil

import (
	"strconv"
	"strings"
)

// SafeMapStringAny safely asserts value to map[string]any.
func SafeMapStringAny(value any) (map[string]any, bool) {
	if value == nil {
		return nil, false
	}
	m, ok := value.(map[string]any)
	return m, ok
}

// SafeString safely asserts value to string.
func SafeString(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// SafeStringDefault returns the string value or the default.
func SafeStringDefault(value any, defaultVal string) string {
	if s, ok := SafeString(value); ok {
		return s
	}
	return defaultVal
}

// SafeInt safely extracts an int. Handles the numeric types JSON unmarshaling
// produces plus digit strings like "85" or "85.0".
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// SafeIntDefault returns the int value or the default.
func SafeIntDefault(value any, defaultVal int) int {
	if i, ok := SafeInt(value); ok {
		return i
	}
	return defaultVal
}

// SafeBool safely extracts a bool. Accepts the affirmative/negative strings
// models emit for yes/no fields ("true", "yes", "no", ...).
func SafeBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0", "":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// SafeBoolDefault returns the bool value or the default.
func SafeBoolDefault(value any, defaultVal bool) bool {
	if b, ok := SafeBool(value); ok {
		return b
	}
	return defaultVal
}

// SafeStringSlice safely extracts []string. Handles []any of strings (common
// from JSON), a bare string (wrapped as a one-element slice), and skips
// non-string elements rather than failing the whole slice.
func SafeStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result, true
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, true
		}
		return []string{v}, true
	default:
		return nil, false
	}
}

// SafeStringSliceDefault returns the []string value or the default.
func SafeStringSliceDefault(value any, defaultVal []string) []string {
	if s, ok := SafeStringSlice(value); ok {
		return s
	}
	return defaultVal
}

// FirstString returns the first key in the map that holds a non-empty string.
// Useful when a model renames a field across attempts.
func FirstString(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := SafeString(m[key]); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// FirstInt returns the first key in the map that holds an extractable int.
func FirstInt(m map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if _, present := m[key]; !present {
			continue
		}
		if i, ok := SafeInt(m[key]); ok {
			return i, true
		}
	}
	return 0, false
}
