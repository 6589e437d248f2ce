package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
)

// Bindings holds the coerced variable values of one execution. It is built
// once before any field executes and only read afterwards.
type Bindings struct {
	values map[string]any
}

// Lookup returns the bound value of a variable. ok is false when the variable
// was neither supplied nor defaulted.
func (b *Bindings) Lookup(name string) (value any, ok bool) {
	if b == nil {
		return nil, false
	}
	value, ok = b.values[name]
	return value, ok
}

// bindVariables coerces the caller-supplied variables against the operation's
// variable definitions.
func bindVariables(s *schema.Schema, op *document.Operation, input map[string]any) (*Bindings, error) {
	b := &Bindings{values: make(map[string]any, len(op.VariableDefinitions))}
	for _, def := range op.VariableDefinitions {
		t := typeRefFromDocument(def.Type)
		val, ok := input[def.Name]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				dv, _ := valueFromDocument(def.DefaultValue, nil)
				cv, err := coerceValue(s, dv, t)
				if err != nil {
					return nil, fmt.Errorf("%w: default value of $%s: %v", ErrInvalidVariable, def.Name, err)
				}
				b.values[def.Name] = cv
			case def.Type.NonNull:
				return nil, fmt.Errorf("%w: variable $%s of required type %s was not provided", ErrMissingVariable, def.Name, def.Type)
			}
			continue
		}
		if val == nil && def.Type.NonNull {
			return nil, fmt.Errorf("%w: variable $%s of type %s cannot be null", ErrInvalidVariable, def.Name, def.Type)
		}
		cv, err := coerceValue(s, val, t)
		if err != nil {
			return nil, fmt.Errorf("%w: variable $%s of type %s: %v", ErrInvalidVariable, def.Name, def.Type, err)
		}
		b.values[def.Name] = cv
	}
	return b, nil
}

// bindArguments substitutes variable references and literals for the field's
// declared arguments and applies argument defaults.
func bindArguments(s *schema.Schema, fieldDef *schema.Field, args []*document.Argument, b *Bindings) (map[string]any, error) {
	for _, arg := range args {
		if fieldDef.Argument(arg.Name) == nil {
			return nil, fmt.Errorf("unknown argument %q on field %q", arg.Name, fieldDef.Name)
		}
	}
	if len(fieldDef.Arguments) == 0 {
		return nil, nil
	}
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, argDef := range fieldDef.Arguments {
		var node *document.Argument
		for _, a := range args {
			if a.Name == argDef.Name {
				node = a
				break
			}
		}
		if node != nil {
			val, present := valueFromDocument(node.Value, b)
			if present {
				cv, err := coerceValue(s, val, argDef.Type)
				if err != nil {
					return nil, fmt.Errorf("argument %q of type %s: %v", argDef.Name, argDef.Type, err)
				}
				coerced[argDef.Name] = cv
				continue
			}
		}
		if argDef.DefaultValue != nil {
			coerced[argDef.Name] = argDef.DefaultValue
		} else if schema.IsNonNull(argDef.Type) {
			return nil, fmt.Errorf("argument %q of required type %s was not provided", argDef.Name, argDef.Type)
		}
	}
	return coerced, nil
}

// valueFromDocument converts a literal to a Go value, substituting bound
// variables. present is false when v refers to an unbound variable.
func valueFromDocument(v document.Value, b *Bindings) (value any, present bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case *document.Variable:
		return b.Lookup(val.Name)
	case *document.IntValue:
		if i, err := strconv.Atoi(val.Raw); err == nil {
			return i, true
		}
		f, _ := strconv.ParseFloat(val.Raw, 64)
		return f, true
	case *document.FloatValue:
		f, _ := strconv.ParseFloat(val.Raw, 64)
		return f, true
	case *document.StringValue:
		return val.Value, true
	case *document.BooleanValue:
		return val.Value, true
	case *document.NullValue:
		return nil, true
	case *document.EnumValue:
		return val.Name, true
	case *document.ListValue:
		out := make([]any, len(val.Items))
		for i, item := range val.Items {
			out[i], _ = valueFromDocument(item, b)
		}
		return out, true
	case *document.ObjectValue:
		out := make(map[string]any, len(val.Fields))
		for _, f := range val.Fields {
			if fv, ok := valueFromDocument(f.Value, b); ok {
				out[f.Name] = fv
			}
		}
		return out, true
	}
	return nil, false
}

func typeRefFromDocument(t *document.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromDocument(t.Elem))
	} else {
		ref = schema.NamedType(t.Named)
	}
	if t.NonNull {
		ref = schema.NonNullType(ref)
	}
	return ref
}

// coerceValue coerces an input value to the specified GraphQL type
func coerceValue(s *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	// Handle Non-Null wrapper
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type %s", targetType)
		}
		return coerceValue(s, value, schema.Unwrap(targetType))
	}

	// Handle null for nullable types
	if value == nil {
		return nil, nil
	}

	// Handle List wrapper
	if schema.IsList(targetType) {
		return coerceListValue(s, value, targetType)
	}

	namedType := schema.GetNamedType(targetType)
	switch namedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	}

	t := s.Types[namedType]
	if t == nil {
		return nil, fmt.Errorf("unknown type %s", namedType)
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok || t.EnumValue(name) == nil {
			return nil, fmt.Errorf("value %v is not a member of enum %s", value, t.Name)
		}
		return name, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(s, value, t)
	case schema.TypeKindScalar:
		// Custom scalars pass through unchanged.
		return value, nil
	}
	return nil, fmt.Errorf("type %s is not an input type", t.Name)
}

// coerceListValue coerces a value to a list
func coerceListValue(s *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	innerType := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		coercedSlice := make([]any, len(slice))
		for i, item := range slice {
			coercedItem, err := coerceValue(s, item, innerType)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			coercedSlice[i] = coercedItem
		}
		return coercedSlice, nil
	}

	// Single value becomes a list of one
	coercedItem, err := coerceValue(s, value, innerType)
	if err != nil {
		return nil, err
	}
	return []any{coercedItem}, nil
}

func coerceInputObject(s *schema.Schema, value any, t *schema.Type) (any, error) {
	in, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s, got %T", t.Name, value)
	}
	for name := range in {
		if t.InputField(name) == nil {
			return nil, fmt.Errorf("field %q is not defined by type %s", name, t.Name)
		}
	}
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		v, ok := in[f.Name]
		if !ok {
			if f.DefaultValue != nil {
				out[f.Name] = f.DefaultValue
			} else if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("field %s.%s of required type %s was not provided", t.Name, f.Name, f.Type)
			}
			continue
		}
		cv, err := coerceValue(s, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	if t.OneOf && len(out) != 1 {
		return nil, fmt.Errorf("exactly one field must be provided for %s", t.Name)
	}
	return out, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if int32Range(int64(v)) {
			return v, nil
		}
	case int32:
		return int(v), nil
	case int64:
		if int32Range(v) {
			return int(v), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil && int32Range(i) {
			return int(i), nil
		}
	case string:
		if i, err := strconv.ParseInt(v, 10, 32); err == nil {
			return int(i), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

// Int is a signed 32-bit integer on the wire.
func int32Range(i int64) bool { return i >= math.MinInt32 && i <= math.MaxInt32 }

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	case string:
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return floatVal, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any, []any:
		return nil, fmt.Errorf("cannot coerce %T to String", value)
	}
	return fmt.Sprintf("%v", value), nil
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case json.Number:
		return v.String(), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
