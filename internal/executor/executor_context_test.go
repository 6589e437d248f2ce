package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	schema "github.com/hanpama/docexec/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Pattern: Result comparison
func TestExecute_Timeout_Result(t *testing.T) {
	query := newObjectType("Query", asyncField("slow", str), field("fast", str))
	sch := newSchemaWithQueryType(query)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.slow": NewMockBlockingResolver(),
		"Query.fast": NewMockValueResolver("ok"),
	})
	core, logs := observer.New(zap.DebugLevel)
	exec := NewExecutor(rt, sch, WithTimeout(20*time.Millisecond), WithLogger(zap.New(core)))

	gotRes := exec.ExecuteRequest(context.Background(), mustParse(t, `{ slow fast }`), "", nil, nil)

	wantRes := &ExecutionResult{
		Data: obj("slow", nil, "fast", "ok"),
		Errors: []GraphQLError{
			{Message: "operation timed out", Path: Path{"slow"}, Extensions: code(CodeOperationTimeout)},
		},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, logs.FilterMessage("operation exceeded its time budget").Len())
}

// Pattern: Result comparison
func TestExecute_TimeoutOnNonNullRoot_Result(t *testing.T) {
	query := newObjectType("Query", asyncField("slow", nn(str)))
	sch := newSchemaWithQueryType(query)
	rt := NewMockRuntime(map[string]MockResolver{"Query.slow": NewMockBlockingResolver()})
	exec := NewExecutor(rt, sch, WithTimeout(20*time.Millisecond))

	gotRes := exec.ExecuteRequest(context.Background(), mustParse(t, `{ slow }`), "", nil, nil)

	wantRes := &ExecutionResult{
		Errors: []GraphQLError{
			{Message: "operation timed out", Path: Path{"slow"}, Extensions: code(CodeOperationTimeout)},
		},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_CallerCancellation_Result(t *testing.T) {
	query := newObjectType("Query", asyncField("slow", str))
	sch := newSchemaWithQueryType(query)
	rt := NewMockRuntime(map[string]MockResolver{"Query.slow": NewMockBlockingResolver()})
	exec := NewExecutor(rt, sch)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	gotRes := exec.ExecuteRequest(ctx, mustParse(t, `{ slow }`), "", nil, nil)

	wantRes := &ExecutionResult{
		Errors: []GraphQLError{
			{Message: "operation cancelled", Extensions: code(CodeOperationCancelled)},
		},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ResolverErrorsAfterDeadlineReportTimeout(t *testing.T) {
	query := newObjectType("Query", asyncField("slow", str))
	sch := newSchemaWithQueryType(query)
	// A runtime that ignores cancellation and reports the context error late.
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.slow": func(ctx context.Context, source any, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, context.DeadlineExceeded
		},
	})
	exec := NewExecutor(rt, sch, WithTimeout(10*time.Millisecond))

	res := exec.ExecuteRequest(context.Background(), mustParse(t, `{ slow }`), "", nil, nil)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeOperationTimeout, res.Errors[0].Extensions["code"])
}

func TestExecute_MaxConcurrency(t *testing.T) {
	query := newObjectType("Query",
		asyncField("a", str), asyncField("b", str), asyncField("c", str),
		asyncField("d", str), asyncField("e", str), asyncField("f", str),
	)
	sch := newSchemaWithQueryType(query)

	var inFlight, peak atomic.Int32
	resolver := func(ctx context.Context, source any, args map[string]any) (any, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return "v", nil
	}
	rt := NewMockRuntime(nil)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		rt.SetResolver("Query", name, resolver)
	}
	exec := NewExecutor(rt, sch, WithMaxConcurrency(2))

	res := exec.ExecuteRequest(context.Background(), mustParse(t, `{ a b c d e f }`), "", nil, nil)

	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, res.Data.Keys())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, rt.GetCalls(), 6)
}

// Pattern: Result comparison
func TestExecute_PrunedSiblingErrorsAreDropped_Result(t *testing.T) {
	objType := newObjectType("Obj", asyncField("pending", str), field("required", nn(str)))
	query := newObjectType("Query", field("obj", named("Obj")))
	sch := newSchemaWithQueryType(query, objType)

	rt := NewMockRuntime(map[string]MockResolver{
		"Query.obj":    NewMockValueResolver(map[string]any{}),
		"Obj.pending":  NewMockBlockingResolver(),
		"Obj.required": NewMockErrorResolver(errors.New("required failed")),
	})
	exec := NewExecutor(rt, sch)

	gotRes := exec.ExecuteRequest(context.Background(), mustParse(t, `{ obj { pending required } }`), "", nil, nil)

	wantRes := &ExecutionResult{
		Data: obj("obj", nil),
		Errors: []GraphQLError{{
			Message:    "required failed",
			Path:       Path{"obj"},
			Extensions: codeWithOrigin(CodeFieldResolution, Path{"obj", "required"}),
		}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ConcurrentExecutionsOfPreparedOperation(t *testing.T) {
	query := newObjectType("Query", asyncField("echo", str, &schema.InputValue{Name: "value", Type: str}))
	sch := newSchemaWithQueryType(query)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.echo": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return args["value"], nil
		},
	})
	exec := NewExecutor(rt, sch)
	prepared, err := exec.Prepare(mustParse(t, `query($v: String) { echo(value: $v) }`), "")
	require.NoError(t, err)

	const n = 16
	results := make(chan [2]any, n)
	for i := range n {
		go func() {
			want := string(rune('a' + i))
			res := exec.Execute(context.Background(), prepared, map[string]any{"v": want}, nil)
			got, _ := res.Data.Get("echo")
			results <- [2]any{want, got}
		}()
	}
	for range n {
		r := <-results
		assert.Equal(t, r[0], r[1])
	}
}
