package language

import "github.com/vektah/gqlparser/v2/ast"

// Executable documents.
type (
	QueryDocument  = ast.QueryDocument
	SelectionSet   = ast.SelectionSet
	Field          = ast.Field
	FragmentSpread = ast.FragmentSpread
	InlineFragment = ast.InlineFragment
	ArgumentList   = ast.ArgumentList
	DirectiveList  = ast.DirectiveList
	Value          = ast.Value
	Type           = ast.Type
)

// Type system definitions.
type (
	Source              = ast.Source
	Definition          = ast.Definition
	FieldDefinition     = ast.FieldDefinition
	DirectiveDefinition = ast.DirectiveDefinition
)

const (
	Object      = ast.Object
	Interface   = ast.Interface
	Union       = ast.Union
	Scalar      = ast.Scalar
	Enum        = ast.Enum
	InputObject = ast.InputObject
)

const (
	Variable     = ast.Variable
	IntValue     = ast.IntValue
	FloatValue   = ast.FloatValue
	StringValue  = ast.StringValue
	BlockValue   = ast.BlockValue
	BooleanValue = ast.BooleanValue
	NullValue    = ast.NullValue
	EnumValue    = ast.EnumValue
	ListValue    = ast.ListValue
	ObjectValue  = ast.ObjectValue
)
