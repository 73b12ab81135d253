package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeString(t *testing.T) {
	s, ok := SafeString("hello")
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = SafeString(42)
	assert.False(t, ok)

	_, ok = SafeString(nil)
	assert.False(t, ok)

	assert.Equal(t, "fallback", SafeStringDefault(nil, "fallback"))
}

func TestSafeInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
		ok    bool
	}{
		{"int", 42, 42, true},
		{"int64", int64(7), 7, true},
		{"float64", 85.0, 85, true},
		{"digit string", "85", 85, true},
		{"float string", "85.5", 85, true},
		{"padded string", " 60 ", 60, true},
		{"word string", "eighty", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SafeInt(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 60, SafeIntDefault("nope", 60))
}

func TestSafeBool(t *testing.T) {
	for _, truthy := range []any{true, "true", "Yes", "y", "1"} {
		b, ok := SafeBool(truthy)
		assert.True(t, ok, "value %v", truthy)
		assert.True(t, b, "value %v", truthy)
	}
	for _, falsy := range []any{false, "false", "No", "n", "0", ""} {
		b, ok := SafeBool(falsy)
		assert.True(t, ok, "value %v", falsy)
		assert.False(t, b, "value %v", falsy)
	}

	_, ok := SafeBool("maybe")
	assert.False(t, ok)
	assert.True(t, SafeBoolDefault(123, true))
}

func TestSafeStringSlice(t *testing.T) {
	// JSON arrays decode to []any.
	items, ok := SafeStringSlice([]any{"a", "b", 3, "c"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	items, ok = SafeStringSlice("single")
	require.True(t, ok)
	assert.Equal(t, []string{"single"}, items)

	items, ok = SafeStringSlice("  ")
	require.True(t, ok)
	assert.Nil(t, items)

	_, ok = SafeStringSlice(42)
	assert.False(t, ok)
}

func TestFirstString(t *testing.T) {
	m := map[string]any{
		"enhanced_text": "",
		"improved_text": "the improved standard",
	}
	s, ok := FirstString(m, "enhanced_text", "improved_text")
	require.True(t, ok)
	assert.Equal(t, "the improved standard", s)

	_, ok = FirstString(m, "missing")
	assert.False(t, ok)
}

func TestFirstInt(t *testing.T) {
	m := map[string]any{
		"quality_score": "85",
		"score":         70.0,
	}
	i, ok := FirstInt(m, "quality_score", "score")
	require.True(t, ok)
	assert.Equal(t, 85, i)

	_, ok = FirstInt(map[string]any{}, "quality_score")
	assert.False(t, ok)
}

func TestSafeMapStringAny(t *testing.T) {
	m, ok := SafeMapStringAny(map[string]any{"k": "v"})
	require.True(t, ok)
	assert.Equal(t, "v", m["k"])

	_, ok = SafeMapStringAny("not a map")
	assert.False(t, ok)
}
