package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepingResolver(d time.Duration, val any, err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return val, err
	}
}

// Pattern: Result comparison
func TestOrdering_AsyncCompletionOrderIgnored_Result(t *testing.T) {
	query := newObjectType("Query", asyncField("first", str), field("second", str), asyncField("third", str))
	sch := newSchemaWithQueryType(query)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.first":  sleepingResolver(30*time.Millisecond, "1", nil),
		"Query.second": NewMockValueResolver("2"),
		"Query.third":  sleepingResolver(time.Millisecond, "3", nil),
	})
	exec := NewExecutor(rt, sch)

	gotRes := exec.ExecuteRequest(context.Background(), mustParse(t, `{ first second third }`), "", nil, nil)

	wantRes := &ExecutionResult{Data: obj("first", "1", "second", "2", "third", "3")}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestOrdering_ErrorsInDocumentOrder_Result(t *testing.T) {
	item := newObjectType("Item", asyncField("detail", str))
	query := newObjectType("Query",
		asyncField("a", str),
		asyncField("items", list(named("Item"))),
		asyncField("b", str),
	)
	sch := newSchemaWithQueryType(query, item)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a":     sleepingResolver(40*time.Millisecond, nil, errors.New("a failed")),
		"Query.items": NewMockValueResolver([]any{map[string]any{"n": 0}, map[string]any{"n": 1}, map[string]any{"n": 2}}),
		"Query.b":     NewMockErrorResolver(errors.New("b failed")),
		"Item.detail": func(ctx context.Context, source any, args map[string]any) (any, error) {
			n := source.(map[string]any)["n"].(int)
			time.Sleep(time.Duration(3-n) * 5 * time.Millisecond)
			if n == 1 {
				return "ok", nil
			}
			return nil, fmt.Errorf("item %d failed", n)
		},
	})
	exec := NewExecutor(rt, sch)

	gotRes := exec.ExecuteRequest(context.Background(), mustParse(t, `{ a items { detail } b }`), "", nil, nil)

	wantRes := &ExecutionResult{
		Data: obj(
			"a", nil,
			"items", []any{obj("detail", nil), obj("detail", "ok"), obj("detail", nil)},
			"b", nil,
		),
		Errors: []GraphQLError{
			{Message: "a failed", Path: Path{"a"}, Extensions: code(CodeFieldResolution)},
			{Message: "item 0 failed", Path: Path{"items", 0, "detail"}, Extensions: code(CodeFieldResolution)},
			{Message: "item 2 failed", Path: Path{"items", 2, "detail"}, Extensions: code(CodeFieldResolution)},
			{Message: "b failed", Path: Path{"b"}, Extensions: code(CodeFieldResolution)},
		},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestOrdering_StableAcrossExecutions(t *testing.T) {
	item := newObjectType("Item", field("id", id), asyncField("score", num))
	query := newObjectType("Query", asyncField("items", list(named("Item"))), asyncField("total", num))
	sch := newSchemaWithQueryType(query, item)
	items := make([]any, 8)
	for i := range items {
		items[i] = map[string]any{"id": fmt.Sprint(i)}
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.items": NewMockValueResolver(items),
		"Query.total": NewMockValueResolver(8),
		"Item.score": func(ctx context.Context, source any, args map[string]any) (any, error) {
			id := source.(map[string]any)["id"].(string)
			if id == "5" {
				return nil, errors.New("no score")
			}
			return len(id), nil
		},
	})
	exec := NewExecutor(rt, sch)
	prepared, err := exec.Prepare(mustParse(t, `{ total items { id score } }`), "")
	require.NoError(t, err)

	var first []byte
	for range 20 {
		res := exec.Execute(context.Background(), prepared, nil, nil)
		out, err := json.Marshal(res)
		require.NoError(t, err)
		if first == nil {
			first = out
			continue
		}
		require.Equal(t, string(first), string(out))
	}
}

// Pattern: Result comparison
func TestMutation_RootFieldsRunSerially_Result(t *testing.T) {
	mutation := newObjectType("Mutation", asyncField("first", num), asyncField("second", num), asyncField("third", num))
	query := newObjectType("Query", field("noop", str))
	sch := newSchemaWithQueryType(query, mutation)
	sch.SetMutationType("Mutation")

	var mu sync.Mutex
	var order []string
	step := func(name string, d time.Duration, val int) MockResolver {
		return func(ctx context.Context, source any, args map[string]any) (any, error) {
			mu.Lock()
			order = append(order, name+":start")
			mu.Unlock()
			time.Sleep(d)
			mu.Lock()
			order = append(order, name+":end")
			mu.Unlock()
			return val, nil
		}
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Mutation.first":  step("first", 20*time.Millisecond, 1),
		"Mutation.second": step("second", 10*time.Millisecond, 2),
		"Mutation.third":  step("third", 0, 3),
	})
	exec := NewExecutor(rt, sch)

	gotRes := exec.ExecuteRequest(context.Background(), mustParse(t, `mutation { first second third }`), "", nil, nil)

	wantRes := &ExecutionResult{Data: obj("first", 1, "second", 2, "third", 3)}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{
		"first:start", "first:end",
		"second:start", "second:end",
		"third:start", "third:end",
	}, order)
}

func TestRouting_CallKinds(t *testing.T) {
	user := newObjectType("User", field("id", id), asyncField("avatar", str))
	query := newObjectType("Query", asyncField("me", named("User")), field("version", str))
	sch := newSchemaWithQueryType(query, user)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.me":      NewMockValueResolver(map[string]any{"id": "u1"}),
		"Query.version": NewMockValueResolver("1.0"),
		"User.avatar":   NewMockValueResolver("a.png"),
	})
	exec := NewExecutor(rt, sch)

	res := exec.ExecuteRequest(context.Background(), mustParse(t, `{ me { id avatar } version }`), "", nil, nil)
	require.Empty(t, res.Errors)

	kinds := map[string]string{}
	for _, c := range rt.GetCalls() {
		kinds[c.ObjectType+"."+c.Field] = c.Kind
	}
	assert.Equal(t, map[string]string{
		"Query.me":      CallKindAsync,
		"Query.version": CallKindSync,
		"User.id":       CallKindSync,
		"User.avatar":   CallKindAsync,
	}, kinds)
}

func TestRouting_SyncOnlyTreeCallsInDocumentOrder(t *testing.T) {
	label := newObjectType("Label", field("id", id), field("label", str))
	query := newObjectType("Query", field("labels", list(named("Label"))), field("count", num))
	sch := newSchemaWithQueryType(query, label)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.labels": NewMockValueResolver([]any{
			map[string]any{"id": "l1", "label": "a"},
			map[string]any{"id": "l2", "label": "b"},
		}),
		"Query.count": NewMockValueResolver(2),
	})
	exec := NewExecutor(rt, sch)

	res := exec.ExecuteRequest(context.Background(), mustParse(t, `{ labels { id label } count }`), "", nil, nil)
	require.Empty(t, res.Errors)

	var got []string
	for _, c := range rt.GetCalls() {
		got = append(got, c.ObjectType+"."+c.Field)
	}
	assert.Equal(t, []string{
		"Query.labels",
		"Label.id", "Label.label",
		"Label.id", "Label.label",
		"Query.count",
	}, got)
}

func TestRouting_AsyncTaskCarriesPath(t *testing.T) {
	item := newObjectType("Item", asyncField("detail", str))
	query := newObjectType("Query", field("items", list(named("Item"))))
	sch := newSchemaWithQueryType(query, item)

	var mu sync.Mutex
	var paths []string
	rt := &pathRecorder{
		MockRuntime: NewMockRuntime(map[string]MockResolver{
			"Query.items": NewMockValueResolver([]any{map[string]any{}, map[string]any{}}),
		}),
		record: func(p Path) {
			mu.Lock()
			paths = append(paths, p.String())
			mu.Unlock()
		},
	}
	exec := NewExecutor(rt, sch)

	res := exec.ExecuteRequest(context.Background(), mustParse(t, `{ items { d: detail } }`), "", nil, nil)
	require.Empty(t, res.Errors)
	assert.ElementsMatch(t, []string{"items[0].d", "items[1].d"}, paths)
}

type pathRecorder struct {
	*MockRuntime
	record func(Path)
}

func (r *pathRecorder) ResolveAsync(ctx context.Context, task AsyncResolveTask) (any, error) {
	r.record(task.Path)
	return r.MockRuntime.ResolveAsync(ctx, task)
}
