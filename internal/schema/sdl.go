package schema

import (
	"fmt"
	"os"
	"slices"
	"strings"

	language "github.com/hanpama/docexec/internal/language"
)

// BuildFromSDL validates SDL sources and converts them into an executable
// schema. Fields annotated with @async, and every field of a root operation
// type, are marked Async.
func BuildFromSDL(sources ...*language.Source) (*Schema, error) {
	declared := false
	for _, src := range sources {
		if strings.Contains(src.Input, "directive @async") {
			declared = true
			break
		}
	}
	if !declared {
		sources = append([]*language.Source{{Name: "async.graphql", Input: asyncDirectiveSDL}}, sources...)
	}

	doc, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}

	s := NewSchema("")
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}
	roots := []string{s.QueryType, s.MutationType, s.SubscriptionType}

	names := make([]string, 0, len(doc.Types))
	for name, def := range doc.Types {
		if def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		t, err := buildType(doc.Types[name], slices.Contains(roots, name))
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", name, err)
		}
		s.Types[name] = t
	}
	for _, name := range names {
		def := doc.Types[name]
		if def.Kind != language.Interface {
			continue
		}
		for _, pt := range doc.PossibleTypes[name] {
			s.Types[name].AddPossibleType(pt.Name)
		}
	}
	for name, dd := range doc.Directives {
		if _, ok := s.Directives[name]; ok || strings.HasPrefix(name, "__") {
			continue
		}
		d, err := buildDirective(dd)
		if err != nil {
			return nil, fmt.Errorf("directive @%s: %w", name, err)
		}
		s.AddDirective(d)
	}
	return s, nil
}

// LoadSDLFiles reads every path (directories are walked recursively for
// *.graphql and *.graphqls files) and builds a schema from their combined contents.
func LoadSDLFiles(paths ...string) (*Schema, error) {
	var sources []*language.Source
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		files := []string{p}
		if info.IsDir() {
			if files, err = discoverSDL(p); err != nil {
				return nil, err
			}
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, err
			}
			sources = append(sources, &language.Source{Name: f, Input: string(data)})
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no schema files found in %v", paths)
	}
	return BuildFromSDL(sources...)
}

func buildType(def *language.Definition, root bool) (*Type, error) {
	t := NewType(def.Name, TypeKind(def.Kind), def.Description)
	switch def.Kind {
	case language.Object, language.Interface:
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			f, err := buildField(fd)
			if err != nil {
				return nil, err
			}
			if root && def.Kind == language.Object {
				f.Async = true
			}
			t.AddField(f)
		}
	case language.Union:
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
	case language.Enum:
		for _, ev := range def.EnumValues {
			reason, deprecated := deprecation(ev.Directives)
			t.AddEnumValue(&EnumValue{
				Name:              ev.Name,
				Description:       ev.Description,
				IsDeprecated:      deprecated,
				DeprecationReason: reason,
			})
		}
	case language.InputObject:
		for _, fd := range def.Fields {
			iv, err := buildInputValue(fd.Name, fd.Description, fd.Type, fd.DefaultValue, fd.Directives)
			if err != nil {
				return nil, err
			}
			t.AddInputField(iv)
		}
		t.OneOf = def.Directives.ForName("oneOf") != nil
	case language.Scalar:
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if a := d.Arguments.ForName("url"); a != nil && a.Value != nil {
				url := a.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
	}
	return t, nil
}

func buildField(fd *language.FieldDefinition) (*Field, error) {
	f := NewField(fd.Name, buildTypeRef(fd.Type))
	f.Description = fd.Description
	f.Async = fd.Directives.ForName("async") != nil
	f.DeprecationReason, f.IsDeprecated = deprecation(fd.Directives)
	for _, ad := range fd.Arguments {
		iv, err := buildInputValue(ad.Name, ad.Description, ad.Type, ad.DefaultValue, ad.Directives)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		f.Arguments = append(f.Arguments, iv)
	}
	return f, nil
}

func buildInputValue(name, description string, typ *language.Type, def *language.Value, dirs language.DirectiveList) (*InputValue, error) {
	iv := &InputValue{Name: name, Description: description, Type: buildTypeRef(typ)}
	iv.DeprecationReason, iv.IsDeprecated = deprecation(dirs)
	if def != nil {
		v, err := def.Value(nil)
		if err != nil {
			return nil, fmt.Errorf("default value of %s: %w", name, err)
		}
		iv.DefaultValue = normalizeDefault(v)
	}
	return iv, nil
}

// normalizeDefault converts parsed literals to the forms variable coercion
// produces: Int literals become int.
func normalizeDefault(v any) any {
	switch val := v.(type) {
	case int64:
		return int(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeDefault(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeDefault(item)
		}
		return out
	}
	return v
}

func buildDirective(dd *language.DirectiveDefinition) (*Directive, error) {
	d := &Directive{Name: dd.Name, Description: dd.Description, IsRepeatable: dd.IsRepeatable}
	for _, loc := range dd.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, ad := range dd.Arguments {
		iv, err := buildInputValue(ad.Name, ad.Description, ad.Type, ad.DefaultValue, ad.Directives)
		if err != nil {
			return nil, err
		}
		d.Arguments = append(d.Arguments, iv)
	}
	return d, nil
}

func buildTypeRef(t *language.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func deprecation(dirs language.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	reason := "No longer supported"
	if a := d.Arguments.ForName("reason"); a != nil && a.Value != nil {
		reason = a.Value.Raw
	}
	return reason, true
}
