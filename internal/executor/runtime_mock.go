package executor

import (
	"context"
	"errors"
	"sync"
)

// MockResolver resolves one field in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Call kinds recorded by MockRuntime.
const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// NewMockBlockingResolver blocks until ctx is done and returns its error.
func NewMockBlockingResolver() MockResolver {
	return func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Call records one resolver invocation.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
}

// MockRuntime is a Runtime for tests. Registered resolvers are keyed by
// "Type.field"; other fields are read from map[string]any sources by name.
// Abstract types resolve through the source's "__typename" entry and leaf
// values pass through unchanged unless a serializer is set.
type MockRuntime struct {
	mu         sync.Mutex
	resolvers  map[string]MockResolver
	serializer func(typeName string, val any) (any, error)
	calls      []Call
}

var _ Runtime = (*MockRuntime)(nil)

var errNoTypename = errors.New("cannot resolve type")

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, r := range resolvers {
		m.resolvers[k] = r
	}
	return m
}

func (m *MockRuntime) SetResolver(objectType, field string, r MockResolver) {
	m.mu.Lock()
	m.resolvers[objectType+"."+field] = r
	m.mu.Unlock()
}

func (m *MockRuntime) SetSerializer(f func(typeName string, val any) (any, error)) {
	m.mu.Lock()
	m.serializer = f
	m.mu.Unlock()
}

// GetCalls returns the recorded calls in invocation order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	return m.record(ctx, Call{Kind: CallKindSync, ObjectType: objectType, Field: field, Source: source, Args: args})
}

func (m *MockRuntime) ResolveAsync(ctx context.Context, task AsyncResolveTask) (any, error) {
	return m.record(ctx, Call{Kind: CallKindAsync, ObjectType: task.ObjectType, Field: task.Field, Source: task.Source, Args: task.Args})
}

func (m *MockRuntime) record(ctx context.Context, c Call) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	r := m.resolvers[c.ObjectType+"."+c.Field]
	m.mu.Unlock()

	if r != nil {
		return r(ctx, c.Source, c.Args)
	}
	if src, ok := c.Source.(map[string]any); ok {
		return src[c.Field], nil
	}
	return nil, nil
}

func (m *MockRuntime) ResolveType(_ context.Context, _ string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", errNoTypename
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(typeName, value)
}
