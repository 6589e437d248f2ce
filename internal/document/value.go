package document

import (
	"strconv"
	"strings"
)

// Value is an input value literal or a variable reference.
type Value interface {
	isValue()
}

type (
	Variable     struct{ Name string }
	IntValue     struct{ Raw string }
	FloatValue   struct{ Raw string }
	StringValue  struct{ Value string }
	BooleanValue struct{ Value bool }
	NullValue    struct{}
	EnumValue    struct{ Name string }
	ListValue    struct{ Items []Value }
	ObjectValue  struct{ Fields []*ObjectField }
)

type ObjectField struct {
	Name  string
	Value Value
}

func (*Variable) isValue()     {}
func (*IntValue) isValue()     {}
func (*FloatValue) isValue()   {}
func (*StringValue) isValue()  {}
func (*BooleanValue) isValue() {}
func (*NullValue) isValue()    {}
func (*EnumValue) isValue()    {}
func (*ListValue) isValue()    {}
func (*ObjectValue) isValue()  {}

// EqualValues reports whether a and b are the same literal or refer to the
// same variable. Object fields are compared regardless of order.
func EqualValues(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *Variable:
		bv, ok := b.(*Variable)
		return ok && av.Name == bv.Name
	case *IntValue:
		bv, ok := b.(*IntValue)
		return ok && av.Raw == bv.Raw
	case *FloatValue:
		bv, ok := b.(*FloatValue)
		return ok && av.Raw == bv.Raw
	case *StringValue:
		bv, ok := b.(*StringValue)
		return ok && av.Value == bv.Value
	case *BooleanValue:
		bv, ok := b.(*BooleanValue)
		return ok && av.Value == bv.Value
	case *NullValue:
		_, ok := b.(*NullValue)
		return ok
	case *EnumValue:
		bv, ok := b.(*EnumValue)
		return ok && av.Name == bv.Name
	case *ListValue:
		bv, ok := b.(*ListValue)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !EqualValues(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *ObjectValue:
		bv, ok := b.(*ObjectValue)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for _, af := range av.Fields {
			found := false
			for _, bf := range bv.Fields {
				if af.Name == bf.Name {
					found = EqualValues(af.Value, bf.Value)
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return false
}

// EqualArguments compares two argument lists as unordered sets.
func EqualArguments(a, b []*Argument) bool {
	if len(a) != len(b) {
		return false
	}
	for _, aa := range a {
		found := false
		for _, ba := range b {
			if aa.Name == ba.Name {
				found = EqualValues(aa.Value, ba.Value)
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ValueString renders v in GraphQL syntax.
func ValueString(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case *Variable:
		return "$" + val.Name
	case *IntValue:
		return val.Raw
	case *FloatValue:
		return val.Raw
	case *StringValue:
		return strconv.Quote(val.Value)
	case *BooleanValue:
		return strconv.FormatBool(val.Value)
	case *NullValue:
		return "null"
	case *EnumValue:
		return val.Name
	case *ListValue:
		parts := make([]string, len(val.Items))
		for i, it := range val.Items {
			parts[i] = ValueString(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectValue:
		parts := make([]string, len(val.Fields))
		for i, f := range val.Fields {
			parts[i] = f.Name + ": " + ValueString(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}
