package introspection

import (
	schema "github.com/hanpama/docexec/internal/schema"
)

var (
	str     = schema.NamedType("String")
	boolean = schema.NamedType("Boolean")
)

func nn(t *schema.TypeRef) *schema.TypeRef { return schema.NonNullType(t) }

func listOf(name string) *schema.TypeRef {
	return schema.ListType(nn(schema.NamedType(name)))
}

func includeDeprecated() *schema.InputValue {
	return &schema.InputValue{Name: "includeDeprecated", Type: boolean, DefaultValue: false}
}

// extend returns a copy of original that also defines the introspection types
// and the __schema and __type meta fields on the query type. original is not
// modified.
func extend(original *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+8),
		Directives:       original.Directives,
		Description:      original.Description,
	}
	for name, t := range original.Types {
		extended.Types[name] = t
	}
	for _, t := range metaTypes() {
		extended.Types[t.Name] = t
	}

	query := original.GetQueryType()
	if query == nil {
		return extended
	}
	cp := *query
	cp.Fields = append(append([]*schema.Field(nil), query.Fields...),
		&schema.Field{
			Name:        schemaField,
			Description: "Access the current type schema of this server.",
			Type:        nn(schema.NamedType("__Schema")),
		},
		&schema.Field{
			Name:        typeField,
			Description: "Request the type information of a single type.",
			Type:        schema.NamedType("__Type"),
			Arguments:   []*schema.InputValue{{Name: "name", Type: nn(str)}},
		},
	)
	extended.Types[cp.Name] = &cp
	return extended
}

func metaTypes() []*schema.Type {
	return []*schema.Type{
		schema.NewType("__Schema", schema.TypeKindObject, "A GraphQL Schema defines the capabilities of a GraphQL server.").
			AddField(schema.NewField("description", str)).
			AddField(schema.NewField("types", nn(listOf("__Type")))).
			AddField(schema.NewField("queryType", nn(schema.NamedType("__Type")))).
			AddField(schema.NewField("mutationType", schema.NamedType("__Type"))).
			AddField(schema.NewField("subscriptionType", schema.NamedType("__Type"))).
			AddField(schema.NewField("directives", nn(listOf("__Directive")))),

		schema.NewType("__Type", schema.TypeKindObject, "The fundamental unit of any GraphQL Schema is the type.").
			AddField(schema.NewField("kind", nn(schema.NamedType("__TypeKind")))).
			AddField(schema.NewField("name", str)).
			AddField(schema.NewField("description", str)).
			AddField(schema.NewField("specifiedByURL", str)).
			AddField(schema.NewField("fields", listOf("__Field"), includeDeprecated())).
			AddField(schema.NewField("interfaces", listOf("__Type"))).
			AddField(schema.NewField("possibleTypes", listOf("__Type"))).
			AddField(schema.NewField("enumValues", listOf("__EnumValue"), includeDeprecated())).
			AddField(schema.NewField("inputFields", listOf("__InputValue"), includeDeprecated())).
			AddField(schema.NewField("ofType", schema.NamedType("__Type"))).
			AddField(schema.NewField("isOneOf", boolean)),

		schema.NewType("__Field", schema.TypeKindObject, "").
			AddField(schema.NewField("name", nn(str))).
			AddField(schema.NewField("description", str)).
			AddField(schema.NewField("args", nn(listOf("__InputValue")), includeDeprecated())).
			AddField(schema.NewField("type", nn(schema.NamedType("__Type")))).
			AddField(schema.NewField("isDeprecated", nn(boolean))).
			AddField(schema.NewField("deprecationReason", str)),

		schema.NewType("__InputValue", schema.TypeKindObject, "").
			AddField(schema.NewField("name", nn(str))).
			AddField(schema.NewField("description", str)).
			AddField(schema.NewField("type", nn(schema.NamedType("__Type")))).
			AddField(schema.NewField("defaultValue", str)).
			AddField(schema.NewField("isDeprecated", nn(boolean))).
			AddField(schema.NewField("deprecationReason", str)),

		schema.NewType("__EnumValue", schema.TypeKindObject, "").
			AddField(schema.NewField("name", nn(str))).
			AddField(schema.NewField("description", str)).
			AddField(schema.NewField("isDeprecated", nn(boolean))).
			AddField(schema.NewField("deprecationReason", str)),

		schema.NewType("__Directive", schema.TypeKindObject, "").
			AddField(schema.NewField("name", nn(str))).
			AddField(schema.NewField("description", str)).
			AddField(schema.NewField("isRepeatable", nn(boolean))).
			AddField(schema.NewField("locations", nn(listOf("__DirectiveLocation")))).
			AddField(schema.NewField("args", nn(listOf("__InputValue")), includeDeprecated())),

		enum("__TypeKind",
			"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL"),

		enum("__DirectiveLocation",
			"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
			"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
			"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
			"INPUT_FIELD_DEFINITION"),
	}
}

func enum(name string, values ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(&schema.EnumValue{Name: v})
	}
	return t
}
