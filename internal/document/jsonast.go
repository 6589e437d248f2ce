package document

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid JSON document")

// FromJSON loads a pre-parsed document in the graphql-js AST shape, as emitted
// by GraphQL build tooling. Two layouts are accepted:
//
//	{"kind": "Document", "definitions": [...]}
//	{"operation": {"kind": "OperationDefinition", ...}, "fragments": {"Name": {...}}}
//
// Source locations ("loc") and any other keys are ignored.
func FromJSON(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, errInvalidJSON
	}
	root := gjson.ParseBytes(data)
	doc := &Document{Fragments: map[string]*FragmentDefinition{}}

	switch {
	case root.Get("kind").String() == "Document":
		for _, def := range root.Get("definitions").Array() {
			if err := doc.addDefinition(def); err != nil {
				return nil, err
			}
		}
	case root.Get("operation").IsObject():
		if err := doc.addDefinition(root.Get("operation")); err != nil {
			return nil, err
		}
		var ferr error
		root.Get("fragments").ForEach(func(_, def gjson.Result) bool {
			ferr = doc.addDefinition(def)
			return ferr == nil
		})
		if ferr != nil {
			return nil, ferr
		}
	default:
		return nil, fmt.Errorf("%w: expected a Document node or an operation/fragments object", errInvalidJSON)
	}
	return doc, nil
}

func (d *Document) addDefinition(def gjson.Result) error {
	switch kind := def.Get("kind").String(); kind {
	case "OperationDefinition":
		dirs, err := jsonDirectives(def.Get("directives"))
		if err != nil {
			return err
		}
		op := &Operation{
			Kind:       OperationKind(def.Get("operation").String()),
			Name:       def.Get("name.value").String(),
			Directives: dirs,
		}
		if op.Kind == "" {
			op.Kind = Query
		}
		for _, vd := range def.Get("variableDefinitions").Array() {
			t, err := jsonType(vd.Get("type"))
			if err != nil {
				return err
			}
			dv, err := jsonValue(vd.Get("defaultValue"))
			if err != nil {
				return err
			}
			op.VariableDefinitions = append(op.VariableDefinitions, &VariableDefinition{
				Name:         vd.Get("variable.name.value").String(),
				Type:         t,
				DefaultValue: dv,
			})
		}
		set, err := jsonSelectionSet(def.Get("selectionSet"))
		if err != nil {
			return err
		}
		op.SelectionSet = set
		d.Operations = append(d.Operations, op)
	case "FragmentDefinition":
		name := def.Get("name.value").String()
		if _, dup := d.Fragments[name]; dup {
			return fmt.Errorf("fragment %q is defined more than once", name)
		}
		dirs, err := jsonDirectives(def.Get("directives"))
		if err != nil {
			return err
		}
		set, err := jsonSelectionSet(def.Get("selectionSet"))
		if err != nil {
			return err
		}
		d.Fragments[name] = &FragmentDefinition{
			Name:          name,
			TypeCondition: def.Get("typeCondition.name.value").String(),
			Directives:    dirs,
			SelectionSet:  set,
		}
	default:
		return fmt.Errorf("unsupported definition kind %q", kind)
	}
	return nil
}

func jsonSelectionSet(node gjson.Result) (SelectionSet, error) {
	if !node.Exists() || node.Type == gjson.Null {
		return nil, nil
	}
	sels := node.Get("selections").Array()
	if len(sels) == 0 {
		return nil, nil
	}
	out := make(SelectionSet, 0, len(sels))
	for _, sel := range sels {
		dirs, err := jsonDirectives(sel.Get("directives"))
		if err != nil {
			return nil, err
		}
		switch kind := sel.Get("kind").String(); kind {
		case "Field":
			args, err := jsonArguments(sel.Get("arguments"))
			if err != nil {
				return nil, err
			}
			sub, err := jsonSelectionSet(sel.Get("selectionSet"))
			if err != nil {
				return nil, err
			}
			out = append(out, &Field{
				Alias:        sel.Get("alias.value").String(),
				Name:         sel.Get("name.value").String(),
				Arguments:    args,
				Directives:   dirs,
				SelectionSet: sub,
			})
		case "FragmentSpread":
			out = append(out, &FragmentSpread{
				Name:       sel.Get("name.value").String(),
				Directives: dirs,
			})
		case "InlineFragment":
			sub, err := jsonSelectionSet(sel.Get("selectionSet"))
			if err != nil {
				return nil, err
			}
			out = append(out, &InlineFragment{
				TypeCondition: sel.Get("typeCondition.name.value").String(),
				Directives:    dirs,
				SelectionSet:  sub,
			})
		default:
			return nil, fmt.Errorf("unsupported selection kind %q", kind)
		}
	}
	return out, nil
}

func jsonArguments(node gjson.Result) ([]*Argument, error) {
	items := node.Array()
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]*Argument, len(items))
	for i, a := range items {
		v, err := jsonValue(a.Get("value"))
		if err != nil {
			return nil, err
		}
		out[i] = &Argument{Name: a.Get("name.value").String(), Value: v}
	}
	return out, nil
}

func jsonDirectives(node gjson.Result) ([]*Directive, error) {
	items := node.Array()
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]*Directive, 0, len(items))
	for _, d := range items {
		name := d.Get("name.value").String()
		args, err := jsonArguments(d.Get("arguments"))
		if err != nil {
			return nil, fmt.Errorf("directive @%s: %w", name, err)
		}
		out = append(out, &Directive{Name: name, Arguments: args})
	}
	return out, nil
}

func jsonType(node gjson.Result) (*Type, error) {
	switch kind := node.Get("kind").String(); kind {
	case "NamedType":
		return &Type{Named: node.Get("name.value").String()}, nil
	case "ListType":
		elem, err := jsonType(node.Get("type"))
		if err != nil {
			return nil, err
		}
		return &Type{Elem: elem}, nil
	case "NonNullType":
		inner, err := jsonType(node.Get("type"))
		if err != nil {
			return nil, err
		}
		inner.NonNull = true
		return inner, nil
	default:
		return nil, fmt.Errorf("unsupported type kind %q", kind)
	}
}

func jsonValue(node gjson.Result) (Value, error) {
	if !node.Exists() || node.Type == gjson.Null {
		return nil, nil
	}
	switch kind := node.Get("kind").String(); kind {
	case "Variable":
		return &Variable{Name: node.Get("name.value").String()}, nil
	case "IntValue":
		return &IntValue{Raw: node.Get("value").String()}, nil
	case "FloatValue":
		return &FloatValue{Raw: node.Get("value").String()}, nil
	case "StringValue":
		return &StringValue{Value: node.Get("value").String()}, nil
	case "BooleanValue":
		return &BooleanValue{Value: node.Get("value").Bool()}, nil
	case "NullValue":
		return &NullValue{}, nil
	case "EnumValue":
		return &EnumValue{Name: node.Get("value").String()}, nil
	case "ListValue":
		raw := node.Get("values").Array()
		items := make([]Value, len(raw))
		for i, r := range raw {
			v, err := jsonValue(r)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &ListValue{Items: items}, nil
	case "ObjectValue":
		raw := node.Get("fields").Array()
		fields := make([]*ObjectField, len(raw))
		for i, r := range raw {
			v, err := jsonValue(r.Get("value"))
			if err != nil {
				return nil, err
			}
			fields[i] = &ObjectField{Name: r.Get("name.value").String(), Value: v}
		}
		return &ObjectValue{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %q", kind)
	}
}
