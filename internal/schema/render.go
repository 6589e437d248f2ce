package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces SDL from the Schema. Types and directives are sorted by
// name; built-in scalars and directives are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder

	if s.QueryType != "Query" || (s.MutationType != "" && s.MutationType != "Mutation") ||
		(s.SubscriptionType != "" && s.SubscriptionType != "Subscription") {
		b.WriteString("schema {\n")
		for _, root := range [][2]string{{"query", s.QueryType}, {"mutation", s.MutationType}, {"subscription", s.SubscriptionType}} {
			if root[1] != "" {
				fmt.Fprintf(&b, "  %s: %s\n", root[0], root[1])
			}
		}
		b.WriteString("}\n\n")
	}

	typeNames := make([]string, 0, len(s.Types))
	for name := range s.Types {
		if IsBuiltinScalar(name) || strings.HasPrefix(name, "__") {
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	w := sdlWriter{schema: s, b: &b}
	for _, name := range typeNames {
		w.typeDef(s.Types[name])
	}

	directiveNames := make([]string, 0, len(s.Directives))
	for name := range s.Directives {
		switch name {
		case "include", "skip", "async", "deprecated", "specifiedBy", "oneOf", "defer":
			continue
		}
		directiveNames = append(directiveNames, name)
	}
	sort.Strings(directiveNames)
	for _, name := range directiveNames {
		w.directiveDef(s.Directives[name])
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// sdlWriter writes type system definitions. Member lines are indented two
// spaces; every definition ends with a blank line.
type sdlWriter struct {
	schema *Schema
	b      *strings.Builder
}

func (w sdlWriter) isRoot(typeName string) bool {
	return typeName == w.schema.QueryType || typeName == w.schema.MutationType || typeName == w.schema.SubscriptionType
}

func (w sdlWriter) typeDef(t *Type) {
	w.description("", t.Description)
	switch t.Kind {
	case TypeKindScalar:
		fmt.Fprintf(w.b, "scalar %s", t.Name)
		if t.SpecifiedByURL != nil {
			fmt.Fprintf(w.b, " @specifiedBy(url: %s)", strconv.Quote(*t.SpecifiedByURL))
		}
		w.b.WriteString("\n\n")

	case TypeKindUnion:
		fmt.Fprintf(w.b, "union %s = %s\n\n", t.Name, strings.Join(t.PossibleTypes, " | "))

	case TypeKindEnum:
		fmt.Fprintf(w.b, "enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			w.description("  ", v.Description)
			w.b.WriteString("  " + v.Name)
			w.deprecated(v.IsDeprecated, v.DeprecationReason)
			w.b.WriteString("\n")
		}
		w.b.WriteString("}\n\n")

	case TypeKindInputObject:
		fmt.Fprintf(w.b, "input %s", t.Name)
		if t.OneOf {
			w.b.WriteString(" @oneOf")
		}
		w.b.WriteString(" {\n")
		for _, f := range t.InputFields {
			w.description("  ", f.Description)
			w.b.WriteString("  ")
			w.inputValue(f)
			w.deprecated(f.IsDeprecated, f.DeprecationReason)
			w.b.WriteString("\n")
		}
		w.b.WriteString("}\n\n")

	case TypeKindObject, TypeKindInterface:
		keyword := "type"
		if t.Kind == TypeKindInterface {
			keyword = "interface"
		}
		fmt.Fprintf(w.b, "%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			w.b.WriteString(" implements " + strings.Join(t.Interfaces, " & "))
		}
		w.b.WriteString(" {\n")
		root := w.isRoot(t.Name)
		for _, f := range t.Fields {
			w.description("  ", f.Description)
			w.b.WriteString("  " + f.Name)
			w.arguments(f.Arguments)
			w.b.WriteString(": " + renderTypeRef(f.Type))
			if f.Async && !root {
				w.b.WriteString(" @async")
			}
			w.deprecated(f.IsDeprecated, f.DeprecationReason)
			w.b.WriteString("\n")
		}
		w.b.WriteString("}\n\n")
	}
}

func (w sdlWriter) directiveDef(d *Directive) {
	w.description("", d.Description)
	w.b.WriteString("directive @" + d.Name)
	w.arguments(d.Arguments)
	if d.IsRepeatable {
		w.b.WriteString(" repeatable")
	}
	w.b.WriteString(" on " + strings.Join(d.Locations, " | ") + "\n\n")
}

func (w sdlWriter) description(indent, desc string) {
	if desc == "" {
		return
	}
	quoted := strings.ReplaceAll(desc, `"""`, `\"""`)
	w.b.WriteString(indent + `"""` + "\n")
	for _, line := range strings.Split(quoted, "\n") {
		w.b.WriteString(indent + line + "\n")
	}
	w.b.WriteString(indent + `"""` + "\n")
}

func (w sdlWriter) deprecated(is bool, reason string) {
	if !is {
		return
	}
	w.b.WriteString(" @deprecated")
	if reason != "" {
		fmt.Fprintf(w.b, "(reason: %s)", strconv.Quote(reason))
	}
}

func (w sdlWriter) arguments(args []*InputValue) {
	if len(args) == 0 {
		return
	}
	w.b.WriteString("(")
	for i, a := range args {
		if i > 0 {
			w.b.WriteString(", ")
		}
		w.inputValue(a)
	}
	w.b.WriteString(")")
}

func (w sdlWriter) inputValue(v *InputValue) {
	w.b.WriteString(v.Name + ": " + renderTypeRef(v.Type))
	if v.DefaultValue != nil {
		w.b.WriteString(" = " + w.schema.RenderDefault(v.Type, v.DefaultValue))
	}
}

func renderTypeRef(typeRef *TypeRef) string {
	if typeRef == nil {
		return ""
	}

	switch typeRef.Kind {
	case TypeRefKindNamed:
		return typeRef.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(typeRef.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(typeRef.OfType) + "!"
	default:
		return ""
	}
}

// RenderDefault renders a coerced default value of type t as an SDL
// literal. Enum values are written bare.
func (s *Schema) RenderDefault(t *TypeRef, value any) string {
	named := t
	for named != nil && named.Kind != TypeRefKindNamed {
		named = named.OfType
	}
	var nt *Type
	if named != nil {
		nt = s.Types[named.Named]
	}
	switch v := value.(type) {
	case string:
		if nt != nil && nt.Kind == TypeKindEnum {
			return v
		}
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = s.RenderDefault(named, item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			var ft *TypeRef
			if nt != nil {
				if f := nt.InputField(k); f != nil {
					ft = f.Type
				}
			}
			parts[i] = k + ": " + s.RenderDefault(ft, v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return RenderValue(value)
}

// RenderValue renders a Go value as a GraphQL literal. Strings are quoted and
// map keys are sorted.
func RenderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = RenderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + RenderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}
