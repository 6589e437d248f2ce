package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	language "github.com/hanpama/docexec/internal/language"
)

// Parse parses GraphQL query text into a Document.
func Parse(source string) (*Document, error) {
	qd, err := language.ParseQuery(source)
	if err != nil {
		return nil, err
	}
	return FromQuery(qd)
}

// Load reads a document from disk. Files ending in .json are treated as a
// pre-parsed JSON AST, anything else as GraphQL query text.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FromJSON(data)
	}
	return Parse(string(data))
}

// FromQuery converts a parsed gqlparser document, dropping positions and any
// schema bindings attached to the nodes.
func FromQuery(qd *language.QueryDocument) (*Document, error) {
	doc := &Document{Fragments: make(map[string]*FragmentDefinition, len(qd.Fragments))}
	for _, op := range qd.Operations {
		o := &Operation{
			Kind:         OperationKind(op.Operation),
			Name:         op.Name,
			Directives:   convertDirectives(op.Directives),
			SelectionSet: convertSelectionSet(op.SelectionSet),
		}
		if o.Kind == "" {
			o.Kind = Query
		}
		for _, vd := range op.VariableDefinitions {
			o.VariableDefinitions = append(o.VariableDefinitions, &VariableDefinition{
				Name:         vd.Variable,
				Type:         convertType(vd.Type),
				DefaultValue: convertValue(vd.DefaultValue),
			})
		}
		doc.Operations = append(doc.Operations, o)
	}
	for _, fd := range qd.Fragments {
		if _, dup := doc.Fragments[fd.Name]; dup {
			return nil, fmt.Errorf("fragment %q is defined more than once", fd.Name)
		}
		doc.Fragments[fd.Name] = &FragmentDefinition{
			Name:          fd.Name,
			TypeCondition: fd.TypeCondition,
			Directives:    convertDirectives(fd.Directives),
			SelectionSet:  convertSelectionSet(fd.SelectionSet),
		}
	}
	return doc, nil
}

func convertSelectionSet(set language.SelectionSet) SelectionSet {
	if len(set) == 0 {
		return nil
	}
	out := make(SelectionSet, 0, len(set))
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			f := &Field{
				Alias:        s.Alias,
				Name:         s.Name,
				Directives:   convertDirectives(s.Directives),
				SelectionSet: convertSelectionSet(s.SelectionSet),
			}
			// gqlparser fills Alias with the field name when no alias is given.
			if f.Alias == f.Name {
				f.Alias = ""
			}
			f.Arguments = convertArguments(s.Arguments)
			out = append(out, f)
		case *language.FragmentSpread:
			out = append(out, &FragmentSpread{Name: s.Name, Directives: convertDirectives(s.Directives)})
		case *language.InlineFragment:
			out = append(out, &InlineFragment{
				TypeCondition: s.TypeCondition,
				Directives:    convertDirectives(s.Directives),
				SelectionSet:  convertSelectionSet(s.SelectionSet),
			})
		}
	}
	return out
}

func convertArguments(args language.ArgumentList) []*Argument {
	if len(args) == 0 {
		return nil
	}
	out := make([]*Argument, len(args))
	for i, a := range args {
		out[i] = &Argument{Name: a.Name, Value: convertValue(a.Value)}
	}
	return out
}

func convertDirectives(dirs language.DirectiveList) []*Directive {
	if len(dirs) == 0 {
		return nil
	}
	out := make([]*Directive, len(dirs))
	for i, d := range dirs {
		out[i] = &Directive{Name: d.Name, Arguments: convertArguments(d.Arguments)}
	}
	return out
}

func convertType(t *language.Type) *Type {
	if t == nil {
		return nil
	}
	return &Type{Named: t.NamedType, Elem: convertType(t.Elem), NonNull: t.NonNull}
}

func convertValue(v *language.Value) Value {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return &Variable{Name: v.Raw}
	case language.IntValue:
		return &IntValue{Raw: v.Raw}
	case language.FloatValue:
		return &FloatValue{Raw: v.Raw}
	case language.StringValue, language.BlockValue:
		return &StringValue{Value: v.Raw}
	case language.BooleanValue:
		return &BooleanValue{Value: v.Raw == "true"}
	case language.NullValue:
		return &NullValue{}
	case language.EnumValue:
		return &EnumValue{Name: v.Raw}
	case language.ListValue:
		items := make([]Value, len(v.Children))
		for i, c := range v.Children {
			items[i] = convertValue(c.Value)
		}
		return &ListValue{Items: items}
	case language.ObjectValue:
		fields := make([]*ObjectField, len(v.Children))
		for i, c := range v.Children {
			fields[i] = &ObjectField{Name: c.Name, Value: convertValue(c.Value)}
		}
		return &ObjectValue{Fields: fields}
	}
	return nil
}
