package schema

// Built-in definitions are constructed per schema so that callers may extend
// a schema's types without leaking into others.

func builtinScalars() []*Type {
	return []*Type{
		{
			Name:        "String",
			Kind:        TypeKindScalar,
			Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
		},
		{
			Name:        "Int",
			Kind:        TypeKindScalar,
			Description: "The `Int` scalar type represents non-fractional signed whole numeric values.",
		},
		{
			Name:        "Float",
			Kind:        TypeKindScalar,
			Description: "The `Float` scalar type represents signed double-precision fractional values.",
		},
		{
			Name:        "Boolean",
			Kind:        TypeKindScalar,
			Description: "The `Boolean` scalar type represents `true` or `false`.",
		},
		{
			Name:        "ID",
			Kind:        TypeKindScalar,
			Description: "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
		},
	}
}

// IsBuiltinScalar reports whether name is one of the five specified scalars.
func IsBuiltinScalar(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return false
}

func includeDirective() *Directive {
	return &Directive{
		Name:        "include",
		Description: "Directs the executor to include this field or fragment only when the `if` argument is true.",
		Arguments: []*InputValue{
			{Name: "if", Description: "Included when true.", Type: NonNullType(NamedType("Boolean"))},
		},
		Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	}
}

func skipDirective() *Directive {
	return &Directive{
		Name:        "skip",
		Description: "Directs the executor to skip this field or fragment when the `if` argument is true.",
		Arguments: []*InputValue{
			{Name: "if", Description: "Skipped when true.", Type: NonNullType(NamedType("Boolean"))},
		},
		Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	}
}

// asyncDirectiveSDL declares the marker for fields resolved off the calling
// goroutine. BuildFromSDL adds it unless the sources declare it themselves.
const asyncDirectiveSDL = `directive @async on FIELD_DEFINITION`
