// Package introspection answers the __schema and __type meta fields by
// wrapping another executor.Runtime.
package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/docexec/internal/executor"
	schema "github.com/hanpama/docexec/internal/schema"
)

const (
	schemaField = "__schema"
	typeField   = "__type"
)

// Wrap returns a runtime and schema that serve introspection queries on top
// of base and sch. Everything that is not introspection is delegated to base.
func Wrap(base executor.Runtime, sch *schema.Schema) (executor.Runtime, *schema.Schema) {
	extended := extend(sch)
	return &runtime{base: base, schema: extended}, extended
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		if v, ok := r.schemaField(src, field); ok {
			return v, nil
		}
	case *schema.Type:
		if v, ok := r.typeField(src, field, args); ok {
			return v, nil
		}
	case *schema.TypeRef:
		if v, ok := r.typeRefField(src, field, args); ok {
			return v, nil
		}
	case *schema.Field:
		if v, ok := fieldField(src, field, args); ok {
			return v, nil
		}
	case *schema.InputValue:
		if v, ok := r.inputValueField(src, field); ok {
			return v, nil
		}
	case *schema.EnumValue:
		if v, ok := enumValueField(src, field); ok {
			return v, nil
		}
	case *schema.Directive:
		if v, ok := directiveField(src, field, args); ok {
			return v, nil
		}
	}

	if objectType == r.schema.QueryType {
		switch field {
		case schemaField:
			return r.schema, nil
		case typeField:
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) ResolveAsync(ctx context.Context, task executor.AsyncResolveTask) (any, error) {
	return r.base.ResolveAsync(ctx, task)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

// SerializeLeafValue passes the meta enums through; the base runtime does not
// know them.
func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if strings.HasPrefix(typ, "__") {
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) schemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "description":
		return optional(sch.Description), true
	case "types":
		out := make([]*schema.Type, 0, len(sch.Types))
		for _, t := range sch.Types {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "queryType":
		return typeOrNil(sch.GetQueryType()), true
	case "mutationType":
		return typeOrNil(sch.GetMutationType()), true
	case "subscriptionType":
		return typeOrNil(sch.GetSubscriptionType()), true
	case "directives":
		out := make([]*schema.Directive, 0, len(sch.Directives))
		for _, d := range sch.Directives {
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	}
	return nil, false
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, bool) {
	deprecated := boolArg(args, "includeDeprecated")
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optional(t.Description), true
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		out := []*schema.Field{}
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "__") || (f.IsDeprecated && !deprecated) {
				continue
			}
			out = append(out, f)
		}
		return out, true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		return r.types(t.Interfaces), true
	case "possibleTypes":
		if !t.IsAbstract() {
			return nil, true
		}
		return r.types(t.PossibleTypes), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		out := []*schema.EnumValue{}
		for _, v := range t.EnumValues {
			if v.IsDeprecated && !deprecated {
				continue
			}
			out = append(out, v)
		}
		return out, true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return inputValues(t.InputFields, deprecated), true
	case "ofType":
		return nil, true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	}
	return nil, false
}

// typeRefField answers __Type fields for a type reference. Wrappers expose
// their kind and ofType; named references answer as the named type.
func (r *runtime) typeRefField(tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	if tr.Kind == schema.TypeRefKindNamed {
		t := r.schema.Types[tr.Named]
		if t == nil {
			return nil, true
		}
		return r.typeField(t, field, args)
	}
	switch field {
	case "kind":
		return string(tr.Kind), true
	case "ofType":
		return tr.OfType, true
	}
	return nil, true
}

func (r *runtime) types(names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func fieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optional(f.Description), true
	case "args":
		return inputValues(f.Arguments, boolArg(args, "includeDeprecated")), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func (r *runtime) inputValueField(v *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return optional(v.Description), true
	case "type":
		return v.Type, true
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil, true
		}
		return r.schema.RenderDefault(v.Type, v.DefaultValue), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(v *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return optional(v.Description), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func directiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optional(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		return d.Locations, true
	case "args":
		return inputValues(d.Arguments, boolArg(args, "includeDeprecated")), true
	}
	return nil, false
}

func inputValues(in []*schema.InputValue, deprecated bool) []*schema.InputValue {
	out := []*schema.InputValue{}
	for _, v := range in {
		if v.IsDeprecated && !deprecated {
			continue
		}
		out = append(out, v)
	}
	return out
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func typeOrNil(t *schema.Type) any {
	if t == nil {
		return nil
	}
	return t
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
