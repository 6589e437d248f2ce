package executor

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   *OrderedMap    `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// Path is a response path. Elements are response keys (string) or list
// indices (int).
type Path []PathElement

type PathElement any

// String renders the path as "home.reminders[2].name".
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case int:
			b.WriteString("[")
			b.WriteString(strconv.Itoa(v))
			b.WriteString("]")
		case string:
			if i > 0 {
				b.WriteString(".")
			}
			b.WriteString(v)
		}
	}
	return b.String()
}

func (p Path) Equal(o Path) bool { return slices.Equal(p, o) }

// location is a response path paired with the document-order position of each
// element, used to sort errors gathered from concurrent branches.
type location struct {
	path  Path
	order []int
}

func (l location) field(key string, index int) location {
	return location{path: appendPath(l.path, key), order: appendOrder(l.order, index)}
}

func (l location) index(i int) location {
	return location{path: appendPath(l.path, i), order: appendOrder(l.order, i)}
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func appendOrder(order []int, i int) []int {
	out := make([]int, len(order)+1)
	copy(out, order)
	out[len(order)] = i
	return out
}

// OrderedMap is an insertion-ordered response object. Keys are allocated up
// front in selection order; concurrent branches each write their own slot.
type OrderedMap struct {
	keys   []string
	values []any
}

func NewOrderedMap(capacity int) *OrderedMap {
	return &OrderedMap{keys: make([]string, 0, capacity), values: make([]any, 0, capacity)}
}

// Set assigns key, appending it when absent.
func (m *OrderedMap) Set(key string, value any) *OrderedMap {
	if i := slices.Index(m.keys, key); i >= 0 {
		m.values[i] = value
		return m
	}
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
	return m
}

func (m *OrderedMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if i := slices.Index(m.keys, key); i >= 0 {
		return m.values[i], true
	}
	return nil, false
}

func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// setAt writes the value of slot i.
func (m *OrderedMap) setAt(i int, value any) { m.values[i] = value }

// Equal reports whether both maps hold the same keys in the same order with
// deeply equal values.
func (m *OrderedMap) Equal(o *OrderedMap) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	return slices.Equal(m.keys, o.keys) && reflect.DeepEqual(m.values, o.values)
}

// ToMap converts the map, recursively, into plain Go maps and slices.
func (m *OrderedMap) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.keys))
	for i, k := range m.keys {
		out[k] = plain(m.values[i])
	}
	return out
}

func plain(v any) any {
	switch val := v.(type) {
	case *OrderedMap:
		if val == nil {
			return nil
		}
		return val.ToMap()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// MarshalJSON writes the keys in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return bytes.Clone(buf.Bytes()), nil
}
