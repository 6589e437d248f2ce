package schema

import "slices"

// Schema represents the complete GraphQL schema
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type // All named types keyed by name
	Directives       map[string]*Directive
	Description      string
}

// NewSchema returns an empty schema holding the built-in scalars and the
// skip/include directives.
func NewSchema(description string) *Schema {
	s := &Schema{
		Types:       map[string]*Type{},
		Directives:  map[string]*Directive{},
		Description: description,
	}
	for _, t := range builtinScalars() {
		s.AddType(t)
	}
	s.AddDirective(includeDirective()).AddDirective(skipDirective())
	return s
}

func (s *Schema) SetQueryType(name string) *Schema        { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema     { s.MutationType = name; return s }
func (s *Schema) SetSubscriptionType(name string) *Schema { s.SubscriptionType = name; return s }

// AddType registers t, replacing any type with the same name. Objects
// implementing interfaces are recorded as possible types of those interfaces.
func (s *Schema) AddType(t *Type) *Schema {
	s.Types[t.Name] = t
	if t.Kind == TypeKindObject {
		for _, iface := range t.Interfaces {
			if it := s.Types[iface]; it != nil && !slices.Contains(it.PossibleTypes, t.Name) {
				it.PossibleTypes = append(it.PossibleTypes, t.Name)
			}
		}
	}
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	s.Directives[d.Name] = d
	return s
}

// GetQueryType returns the root query type (may be nil if absent)
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (may be nil if absent)
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (may be nil if absent)
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// RootTypeName returns the root type name for an operation kind
// ("query", "mutation" or "subscription"), or "" when the schema has none.
func (s *Schema) RootTypeName(operation string) string {
	switch operation {
	case "", "query":
		return s.QueryType
	case "mutation":
		return s.MutationType
	case "subscription":
		return s.SubscriptionType
	}
	return ""
}

// Field returns the field definition typeName.fieldName, or nil.
func (s *Schema) Field(typeName, fieldName string) *Field {
	t := s.Types[typeName]
	if t == nil {
		return nil
	}
	return t.Field(fieldName)
}

// IsPossibleType reports whether objectType is a member of the abstract type.
func (s *Schema) IsPossibleType(abstractType, objectType string) bool {
	at := s.Types[abstractType]
	if at == nil {
		return false
	}
	if slices.Contains(at.PossibleTypes, objectType) {
		return true
	}
	if at.Kind == TypeKindInterface {
		if ot := s.Types[objectType]; ot != nil {
			return slices.Contains(ot.Interfaces, abstractType)
		}
	}
	return false
}

// DoesTypeApply reports whether a fragment with the given type condition
// applies to a value of objectType. An empty condition always applies.
func (s *Schema) DoesTypeApply(objectType, condition string) bool {
	if condition == "" || condition == objectType {
		return true
	}
	ct := s.Types[condition]
	if ct == nil || !ct.IsAbstract() {
		return false
	}
	return s.IsPossibleType(condition, objectType)
}

// Overlaps reports whether some object type could satisfy both type names.
// Two distinct object types never overlap.
func (s *Schema) Overlaps(a, b string) bool {
	if a == b {
		return true
	}
	at, bt := s.Types[a], s.Types[b]
	if at == nil || bt == nil {
		return false
	}
	switch {
	case !at.IsAbstract() && !bt.IsAbstract():
		return false
	case !at.IsAbstract():
		return s.IsPossibleType(b, a)
	case !bt.IsAbstract():
		return s.IsPossibleType(a, b)
	}
	for _, name := range s.possibleTypes(at) {
		if s.IsPossibleType(b, name) {
			return true
		}
	}
	return false
}

func (s *Schema) possibleTypes(t *Type) []string {
	if t.Kind == TypeKindUnion {
		return t.PossibleTypes
	}
	out := slices.Clone(t.PossibleTypes)
	for name, ot := range s.Types {
		if ot.Kind == TypeKindObject && slices.Contains(ot.Interfaces, t.Name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // For OBJECT and INTERFACE
	Interfaces     []string      // For OBJECT and INTERFACE (implemented/extended)
	PossibleTypes  []string      // For INTERFACE and UNION
	EnumValues     []*EnumValue  // For ENUM
	InputFields    []*InputValue // For INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) AddInterface(name string) *Type {
	t.Interfaces = append(t.Interfaces, name)
	return t
}

func (t *Type) AddPossibleType(name string) *Type {
	t.PossibleTypes = append(t.PossibleTypes, name)
	return t
}

func (t *Type) AddEnumValue(v *EnumValue) *Type {
	t.EnumValues = append(t.EnumValues, v)
	return t
}

func (t *Type) AddInputField(v *InputValue) *Type {
	t.InputFields = append(t.InputFields, v)
	return t
}

func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *Type) InputField(name string) *InputValue {
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *Type) EnumValue(name string) *EnumValue {
	for _, v := range t.EnumValues {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func (t *Type) IsAbstract() bool {
	return t.Kind == TypeKindInterface || t.Kind == TypeKindUnion
}

func (t *Type) IsLeaf() bool {
	return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum
}

// Field represents a field on an object or interface
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	Async             bool
	IsDeprecated      bool
	DeprecationReason string
}

func NewField(name string, typ *TypeRef, args ...*InputValue) *Field {
	return &Field{Name: name, Type: typ, Arguments: args}
}

// WithAsync marks the field as resolved off the calling goroutine.
func (f *Field) WithAsync() *Field {
	f.Async = true
	return f
}

func (f *Field) Argument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// String renders the reference in SDL syntax, e.g. "[Reminder]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	}
	return t.Named
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }
