// Package document holds the location-free, immutable form of an executable
// GraphQL document: operations, fragments and the selections and values they
// contain. A Document is built once (from query text or from a pre-parsed JSON
// AST) and may be shared by any number of concurrent executions.
package document

import (
	"errors"
	"fmt"
	"strings"
)

var ErrOperationNotFound = errors.New("operation not found")

type Document struct {
	Operations []*Operation
	Fragments  map[string]*FragmentDefinition
}

// Operation returns the operation with the given name. An empty name selects
// the document's only operation.
func (d *Document) Operation(name string) (*Operation, error) {
	if name == "" {
		if len(d.Operations) == 1 {
			return d.Operations[0], nil
		}
		if len(d.Operations) == 0 {
			return nil, fmt.Errorf("%w: document has no operations", ErrOperationNotFound)
		}
		return nil, fmt.Errorf("%w: operation name is required when the document has %d operations", ErrOperationNotFound, len(d.Operations))
	}
	for _, op := range d.Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, name)
}

func (d *Document) Fragment(name string) *FragmentDefinition {
	if d.Fragments == nil {
		return nil
	}
	return d.Fragments[name]
}

type OperationKind string

const (
	Query        OperationKind = "query"
	Mutation     OperationKind = "mutation"
	Subscription OperationKind = "subscription"
)

type Operation struct {
	Kind                OperationKind
	Name                string
	VariableDefinitions []*VariableDefinition
	Directives          []*Directive
	SelectionSet        SelectionSet
}

type VariableDefinition struct {
	Name         string
	Type         *Type
	DefaultValue Value
}

// Type is a variable type reference such as `HomeInput!` or `[ID!]`.
type Type struct {
	Named   string
	Elem    *Type
	NonNull bool
}

func (t *Type) String() string {
	if t == nil {
		return ""
	}
	var s string
	if t.Elem != nil {
		s = "[" + t.Elem.String() + "]"
	} else {
		s = t.Named
	}
	if t.NonNull {
		s += "!"
	}
	return s
}

type SelectionSet []Selection

// Selection is one of *Field, *FragmentSpread or *InlineFragment.
type Selection interface {
	isSelection()
}

func (*Field) isSelection()          {}
func (*FragmentSpread) isSelection() {}
func (*InlineFragment) isSelection() {}

type Field struct {
	Alias        string
	Name         string
	Arguments    []*Argument
	Directives   []*Directive
	SelectionSet SelectionSet
}

// ResponseKey is the key under which the field's value appears in the response.
func (f *Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

type FragmentSpread struct {
	Name       string
	Directives []*Directive
}

// InlineFragment applies its selections when TypeCondition matches the runtime
// type. An empty TypeCondition always applies.
type InlineFragment struct {
	TypeCondition string
	Directives    []*Directive
	SelectionSet  SelectionSet
}

type FragmentDefinition struct {
	Name          string
	TypeCondition string
	Directives    []*Directive
	SelectionSet  SelectionSet
}

type Argument struct {
	Name  string
	Value Value
}

type Directive struct {
	Name      string
	Arguments []*Argument
}

// Argument returns the named argument, or nil.
func (d *Directive) Argument(name string) *Argument {
	for _, a := range d.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// DirectiveByName returns the first directive with the given name, or nil.
func DirectiveByName(list []*Directive, name string) *Directive {
	for _, d := range list {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Walk calls fn for every selection in set, descending into fields and inline
// fragments but not into fragment spreads.
func Walk(set SelectionSet, fn func(Selection)) {
	for _, sel := range set {
		fn(sel)
		switch s := sel.(type) {
		case *Field:
			Walk(s.SelectionSet, fn)
		case *InlineFragment:
			Walk(s.SelectionSet, fn)
		}
	}
}

// String renders a compact, single-line form of a selection set. It is meant
// for error messages and test output.
func (s SelectionSet) String() string {
	var b strings.Builder
	writeSelectionSet(&b, s)
	return b.String()
}

func writeSelectionSet(b *strings.Builder, s SelectionSet) {
	b.WriteString("{")
	for _, sel := range s {
		b.WriteString(" ")
		switch v := sel.(type) {
		case *Field:
			if v.Alias != "" {
				b.WriteString(v.Alias)
				b.WriteString(": ")
			}
			b.WriteString(v.Name)
			if len(v.Arguments) > 0 {
				b.WriteString("(")
				for j, a := range v.Arguments {
					if j > 0 {
						b.WriteString(", ")
					}
					b.WriteString(a.Name)
					b.WriteString(": ")
					b.WriteString(ValueString(a.Value))
				}
				b.WriteString(")")
			}
			if len(v.SelectionSet) > 0 {
				b.WriteString(" ")
				writeSelectionSet(b, v.SelectionSet)
			}
		case *FragmentSpread:
			b.WriteString("...")
			b.WriteString(v.Name)
		case *InlineFragment:
			b.WriteString("...")
			if v.TypeCondition != "" {
				b.WriteString("on ")
				b.WriteString(v.TypeCondition)
				b.WriteString(" ")
			}
			writeSelectionSet(b, v.SelectionSet)
		}
	}
	b.WriteString(" }")
}
