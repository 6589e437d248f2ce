package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSchema() *schema.Schema {
	label := newObjectType("Label", field("id", nn(id)), field("color", str), field("label", str))
	note := newObjectType("Note",
		field("id", nn(id)),
		field("created_at", str),
		field("updated_at", str),
		field("labels", list(nn(named("Label")))),
	)
	user := newObjectType("User", field("id", nn(id)), field("handle", str)).AddInterface("Node")
	org := newObjectType("Organization", field("id", nn(id)), field("handle", str)).AddInterface("Node")
	node := schema.NewType("Node", schema.TypeKindInterface, "").AddField(field("id", nn(id)))
	owner := schema.NewType("Owner", schema.TypeKindUnion, "").AddPossibleType("Organization").AddPossibleType("User")
	query := newObjectType("Query",
		field("note", named("Note")),
		field("label", named("Label")),
		field("owner", named("Owner")),
		field("node", named("Node")),
		field("a", str),
		field("b", str),
	)
	return newSchemaWithQueryType(query, node, label, note, user, org, owner)
}

// subSelection returns the selection set of the first root field.
func subSelection(doc *document.Document) document.SelectionSet {
	return doc.Operations[0].SelectionSet[0].(*document.Field).SelectionSet
}

func TestCollectFields_IdentityWithoutFragments(t *testing.T) {
	sch := collectSchema()
	doc := mustParse(t, `{ a b other: a }`)

	fields, err := collectFields(doc, sch, nil, sch.GetQueryType(), doc.Operations[0].SelectionSet)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"a", "b", "other"}, responseKeys(fields)); diff != "" {
		t.Fatalf("response keys mismatch (-want +got):\n%s", diff)
	}
	for i, sel := range doc.Operations[0].SelectionSet {
		require.Len(t, fields[i].Fields, 1)
		assert.Same(t, sel, fields[i].Fields[0])
	}
}

func TestCollectFields_RepeatedSpreadIsIdempotent(t *testing.T) {
	sch := collectSchema()
	label := sch.Types["Label"]

	once := mustParse(t, `{ label { ...Label_list id } } fragment Label_list on Label { id color label }`)
	twice := mustParse(t, `{ label { ...Label_list ...Label_list id } } fragment Label_list on Label { id color label }`)

	onceFields, err := collectFields(once, sch, nil, label, subSelection(once))
	require.NoError(t, err)
	twiceFields, err := collectFields(twice, sch, nil, label, subSelection(twice))
	require.NoError(t, err)

	want := []string{"id", "color", "label"}
	if diff := cmp.Diff(want, responseKeys(twiceFields)); diff != "" {
		t.Fatalf("response keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(responseKeys(onceFields), responseKeys(twiceFields)); diff != "" {
		t.Fatalf("expanding twice differs from once (-once +twice):\n%s", diff)
	}
	// The fragment's id and the explicit id are merged into one execution.
	assert.Len(t, twiceFields[0].Fields, 2)
	assert.Len(t, twiceFields[1].Fields, 1)
}

func TestCollectFields_MergeIsOrderIndependent(t *testing.T) {
	sch := collectSchema()
	note := sch.Types["Note"]
	const frag = `fragment Updated on Note { id updated_at }`

	baseFirst := mustParse(t, `{ note { id created_at ...Updated } } `+frag)
	fragFirst := mustParse(t, `{ note { ...Updated id created_at } } `+frag)

	a, err := collectFields(baseFirst, sch, nil, note, subSelection(baseFirst))
	require.NoError(t, err)
	b, err := collectFields(fragFirst, sch, nil, note, subSelection(fragFirst))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "created_at", "updated_at"}, responseKeys(a))
	assert.ElementsMatch(t, responseKeys(a), responseKeys(b))
	for _, cf := range append(a, b...) {
		if cf.ResponseName == "id" {
			assert.Len(t, cf.Fields, 2)
		}
	}
}

func TestCollectFields_TypeConditions(t *testing.T) {
	sch := collectSchema()
	doc := mustParse(t, `{ owner {
		__typename
		... on Organization { orgOnly: handle }
		... on User { handle }
		... on Node { id }
		...UserBits
		... { id }
	} }
	fragment UserBits on User { id }
	`)

	userFields, err := collectFields(doc, sch, nil, sch.Types["User"], subSelection(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"__typename", "handle", "id"}, responseKeys(userFields))

	orgFields, err := collectFields(doc, sch, nil, sch.Types["Organization"], subSelection(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"__typename", "orgOnly", "id"}, responseKeys(orgFields))
}

func TestCollectFields_SkipInclude(t *testing.T) {
	sch := collectSchema()
	doc := mustParse(t, `query($yes: Boolean!, $no: Boolean!) {
		a @skip(if: $yes)
		b @include(if: $yes)
		c: a @include(if: $no)
		... @skip(if: $no) { d: b }
		...F @include(if: false)
	}
	fragment F on Query { e: a }`)

	bindings, err := bindVariables(sch, doc.Operations[0], map[string]any{"yes": true, "no": false})
	require.NoError(t, err)

	fields, err := collectFields(doc, sch, bindings, sch.GetQueryType(), doc.Operations[0].SelectionSet)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, responseKeys(fields))
}

func TestCollectFields_RuntimeConflict(t *testing.T) {
	sch := collectSchema()
	doc := mustParse(t, `{ x: a x: b }`)

	_, err := collectFields(doc, sch, nil, sch.GetQueryType(), doc.Operations[0].SelectionSet)
	require.ErrorIs(t, err, ErrResponseKeyConflict)
}

func TestResolveFragment(t *testing.T) {
	sch := collectSchema()
	doc := mustParse(t, `{ a } fragment U on User { id } fragment N on Node { id }`)

	def, err := resolveFragment(doc, sch, &document.FragmentSpread{Name: "U"}, "User")
	require.NoError(t, err)
	assert.Equal(t, "U", def.Name)

	_, err = resolveFragment(doc, sch, &document.FragmentSpread{Name: "U"}, "Organization")
	require.ErrorIs(t, err, ErrFragmentTypeMismatch)

	_, err = resolveFragment(doc, sch, &document.FragmentSpread{Name: "N"}, "Organization")
	require.NoError(t, err)

	_, err = resolveFragment(doc, sch, &document.FragmentSpread{Name: "Foo_bar"}, "User")
	require.ErrorIs(t, err, ErrUnknownFragment)
}

// Pattern: Result comparison
func TestExecute_InlineFragmentOnRuntimeType_Result(t *testing.T) {
	sch := collectSchema()
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.owner": NewMockValueResolver(map[string]any{"__typename": "User", "id": "u1", "handle": "alice"}),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParse(t, `{ owner { ...on Organization { handle } ...on User { handle } } }`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{Data: obj("owner", obj("handle", "alice"))}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_DoubleSpreadMergesKeys_Result(t *testing.T) {
	sch := collectSchema()
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.label": NewMockValueResolver(map[string]any{"id": "l1", "color": "red", "label": "urgent"}),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParse(t, `
		{ label { ...Label_list ...Label_list id } }
		fragment Label_list on Label { id color label }
	`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{Data: obj("label", obj("id", "l1", "color", "red", "label", "urgent"))}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_Typename_Result(t *testing.T) {
	sch := collectSchema()
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.node": NewMockValueResolver(map[string]any{"__typename": "Organization", "id": "o1"}),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParse(t, `{ __typename node { kind: __typename id } }`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{Data: obj(
		"__typename", "Query",
		"node", obj("kind", "Organization", "id", "o1"),
	)}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}
