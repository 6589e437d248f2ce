package executor

import (
	"path/filepath"
	"testing"

	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
)

// mustParse parses a GraphQL query and fails the test on error.
func mustParse(t *testing.T, q string) *document.Document {
	t.Helper()
	d, err := document.Parse(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// obj builds an OrderedMap from alternating keys and values.
func obj(kv ...any) *OrderedMap {
	m := NewOrderedMap(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1])
	}
	return m
}

func code(c string) map[string]any { return map[string]any{"code": c} }

func codeWithOrigin(c string, origin Path) map[string]any {
	return map[string]any{"code": c, "origin": origin}
}

func newSchemaWithQueryType(query *schema.Type, additional ...*schema.Type) *schema.Schema {
	sch := schema.NewSchema("")
	if query != nil {
		sch.SetQueryType(query.Name)
		sch.AddType(query)
	}
	for _, t := range additional {
		sch.AddType(t)
	}
	return sch
}

func newObjectType(name string, fields ...*schema.Field) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, "")
	for _, field := range fields {
		t.AddField(field)
	}
	return t
}

func field(name string, typ *schema.TypeRef, args ...*schema.InputValue) *schema.Field {
	return schema.NewField(name, typ, args...)
}

func asyncField(name string, typ *schema.TypeRef, args ...*schema.InputValue) *schema.Field {
	return schema.NewField(name, typ, args...).WithAsync()
}

var (
	str   = schema.NamedType("String")
	id    = schema.NamedType("ID")
	num   = schema.NamedType("Int")
	named = schema.NamedType
	nn    = schema.NonNullType
	list  = schema.ListType
)

func loadHomeSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.LoadSDLFiles(filepath.Join("..", "..", "testdata", "homefeed", "schema.graphql"))
	if err != nil {
		t.Fatalf("schema error: %v", err)
	}
	return s
}

func responseKeys(fields []*collectedField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ResponseName
	}
	return out
}
