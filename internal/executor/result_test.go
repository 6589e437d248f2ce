package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMap_MarshalJSONKeepsOrder(t *testing.T) {
	m := obj("z", 1, "a", obj("y", nil, "b", []any{obj("k", "v")}), "m", "s")

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":null,"b":[{"k":"v"}]},"m":"s"}`, string(out))

	var nilMap *OrderedMap
	out, err = json.Marshal(nilMap)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestOrderedMap_SetGet(t *testing.T) {
	m := NewOrderedMap(2).Set("a", 1).Set("b", 2).Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, 2, m.Len())
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"a": 3, "b": 2}, m.ToMap())
	assert.True(t, m.Equal(obj("a", 3, "b", 2)))
	assert.False(t, m.Equal(obj("b", 2, "a", 3)))
}

func TestPath_String(t *testing.T) {
	tests := []struct {
		path Path
		want string
	}{
		{Path{"home"}, "home"},
		{Path{"home", "reminders", 2}, "home.reminders[2]"},
		{Path{"home", "reminders", 2, "name"}, "home.reminders[2].name"},
		{Path{"matrix", 0, 1}, "matrix[0][1]"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.path.String())
	}
}

func TestExecutionResult_JSON(t *testing.T) {
	res := &ExecutionResult{
		Data: obj("reminders", []any{nil}),
		Errors: []GraphQLError{{
			Message:    "boom",
			Path:       Path{"reminders", 0},
			Extensions: codeWithOrigin(CodeFieldResolution, Path{"reminders", 0, "name"}),
		}},
	}

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data": {"reminders": [null]},
		"errors": [{
			"message": "boom",
			"path": ["reminders", 0],
			"extensions": {"code": "FIELD_RESOLUTION_ERROR", "origin": ["reminders", 0, "name"]}
		}]
	}`, string(out))
}
