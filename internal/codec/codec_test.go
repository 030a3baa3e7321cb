package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	props, err := NewProperties(map[string]any{
		"name":   "Alice",
		"age":    int64(30),
		"score":  0.875,
		"active": true,
		"tags":   []any{"a", "b"},
	})
	require.NoError(t, err)

	blob := Encode("Person", props)
	labelHash, decoded, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, LabelHash("Person"), labelHash)

	m := decoded.ToMap()
	require.Equal(t, "Alice", m["name"])
	require.Equal(t, int64(30), m["age"])
	require.Equal(t, 0.875, m["score"])
	require.Equal(t, true, m["active"])
	require.Equal(t, []any{"a", "b"}, m["tags"])
}

func TestEncodeIsDeterministic(t *testing.T) {
	props, err := NewProperties(map[string]any{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)

	first := Encode("X", props)
	second := Encode("X", props)
	require.Equal(t, first, second, "encoding the same logical value twice must be byte-identical")
}

func TestMergePreservesUntouchedFields(t *testing.T) {
	base, err := NewProperties(map[string]any{"name": "Alice", "age": int64(30)})
	require.NoError(t, err)
	update, err := NewProperties(map[string]any{"age": int64(31)})
	require.NoError(t, err)

	merged := Merge(base, update)
	m := merged.ToMap()
	require.Equal(t, "Alice", m["name"])
	require.Equal(t, int64(31), m["age"])
}

func TestLabelHashDeterministic(t *testing.T) {
	require.Equal(t, LabelHash("Person"), LabelHash("Person"))
	require.NotEqual(t, LabelHash("Person"), LabelHash("Company"))
}
