package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/docexec/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Pattern: Result comparison
func TestPrepare_UnknownFragment_Result(t *testing.T) {
	sch := loadHomeSchema(t)
	rt := NewMockRuntime(nil)
	exec := NewExecutor(rt, sch)
	doc := mustParse(t, `query { note(id: "n1") { id ...Foo_bar } }`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{
		Errors: []GraphQLError{
			{Message: `unknown fragment "Foo_bar"`, Extensions: code(CodeUnknownFragment)},
		},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, rt.GetCalls())
}

func TestPrepare_UnknownFragmentInsideFragment(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
	doc := mustParse(t, `
		query { note(id: "n1") { ...Note_item } }
		fragment Note_item on Note { id ...Note_missing }
	`)

	_, err := exec.Prepare(doc, "")
	require.ErrorIs(t, err, ErrUnknownFragment)
	assert.Contains(t, err.Error(), `"Note_missing" (spread in fragment "Note_item")`)
}

func TestPrepare_FragmentCycle(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
	doc := mustParse(t, `
		query { note(id: "n1") { ...A } }
		fragment A on Note { id ...B }
		fragment B on Note { created_at ...A }
	`)

	_, err := exec.Prepare(doc, "")
	require.ErrorIs(t, err, ErrFragmentCycle)
	assert.Equal(t, "fragment cycle: A -> B -> A", err.Error())
	assert.Equal(t, CodeFragmentCycle, ErrorCode(err))
}

func TestPrepare_SelfReferencingFragment(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
	doc := mustParse(t, `
		query { note(id: "n1") { ...A } }
		fragment A on Note { id labels { id } ...A }
	`)

	_, err := exec.Prepare(doc, "")
	require.ErrorIs(t, err, ErrFragmentCycle)
}

func TestPrepare_ResponseKeyConflicts(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{
			name:  "same field twice",
			query: `{ note(id: "n1") { id id } }`,
		},
		{
			name:  "exclusive object types",
			query: `{ note(id: "n1") { owner { ... on User { key: handle } ... on Organization { key: name } } } }`,
		},
		{
			name:    "different fields",
			query:   `{ note(id: "n1") { x: id x: created_at } }`,
			wantErr: ErrResponseKeyConflict,
		},
		{
			name:    "different arguments",
			query:   `{ a: note(id: "n1") { id } a: note(id: "n2") { id } }`,
			wantErr: ErrResponseKeyConflict,
		},
		{
			name:    "conflict through fragments",
			query:   `{ note(id: "n1") { ...F ...G } } fragment F on Note { k: id } fragment G on Note { k: updated_at }`,
			wantErr: ErrResponseKeyConflict,
		},
		{
			name:    "overlapping abstract and object",
			query:   `{ note(id: "n1") { owner { ... on Node { key: id } ... on User { key: handle } } } }`,
			wantErr: ErrResponseKeyConflict,
		},
		{
			name:    "conflict in merged sub-selections",
			query:   `{ note(id: "n1") { you { v: canDelete } } note(id: "n1") { you { v: canUpdate } } }`,
			wantErr: ErrResponseKeyConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
			_, err := exec.Prepare(mustParse(t, tt.query), "")
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPrepare_InvalidSelections(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{"unknown field", `{ note(id: "n1") { title } }`, ErrUnknownField},
		{"leaf with selection", `{ note(id: "n1") { id { x } } }`, ErrInvalidSelection},
		{"object without selection", `{ note(id: "n1") }`, ErrInvalidSelection},
		{"unknown type condition", `{ note(id: "n1") { ... on Missing { id } } }`, ErrUnknownType},
		{"leaf type condition", `{ note(id: "n1") { ... on String { id } } }`, ErrInvalidSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
			_, err := exec.Prepare(mustParse(t, tt.query), "")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, CodeValidationFailed, ErrorCode(err))
		})
	}
}

func TestPrepare_MaxDepth(t *testing.T) {
	sch := loadHomeSchema(t)
	doc := mustParse(t, `{ note(id: "n1") { labels { id } } }`)

	_, err := NewExecutor(NewMockRuntime(nil), sch, WithMaxDepth(3)).Prepare(doc, "")
	require.NoError(t, err)

	_, err = NewExecutor(NewMockRuntime(nil), sch, WithMaxDepth(2)).Prepare(doc, "")
	require.ErrorIs(t, err, ErrMaxDepthExceeded)
	assert.Equal(t, CodeMaxDepthExceeded, ErrorCode(err))
}

func TestPrepare_RepeatedFragmentSpreads(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", field("node", named("Node"))),
		newObjectType("Node", field("id", id), field("child", named("Node"))),
	)
	const levels = 30
	var b strings.Builder
	b.WriteString("query { node { ...F0 } }\n")
	for i := 0; i < levels; i++ {
		fmt.Fprintf(&b, "fragment F%d on Node { id child { ...F%d ...F%d } }\n", i, i+1, i+1)
	}
	fmt.Fprintf(&b, "fragment F%d on Node { id }\n", levels)
	doc := mustParse(t, b.String())

	for _, opts := range [][]Option{nil, {WithMaxDepth(levels + 8)}} {
		start := time.Now()
		_, err := NewExecutor(NewMockRuntime(nil), sch, opts...).Prepare(doc, "")
		require.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	}
}

func TestPrepare_OperationSelection(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
	doc := mustParse(t, `
		query First { note(id: "1") { id } }
		query Second { note(id: "2") { created_at } }
	`)

	op, err := exec.Prepare(doc, "Second")
	require.NoError(t, err)
	assert.Equal(t, "Second", op.Name())
	assert.Equal(t, document.Query, op.Kind())
	assert.Same(t, doc, op.Document())

	_, err = exec.Prepare(doc, "")
	require.ErrorIs(t, err, ErrOperationNotFound)

	res := exec.ExecuteRequest(context.Background(), doc, "Third", nil, nil)
	assert.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeOperationNotFound, res.Errors[0].Extensions["code"])
}

func TestPrepare_MutationWithoutRootType(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))

	_, err := exec.Prepare(mustParse(t, `mutation { anything }`), "")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestPrepare_HomeFeedDocument(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), loadHomeSchema(t))
	doc, err := document.Load("../../testdata/homefeed/query.graphql")
	require.NoError(t, err)

	op, err := exec.Prepare(doc, "home")
	require.NoError(t, err)
	assert.Equal(t, document.Query, op.Kind())
}
