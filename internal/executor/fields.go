package executor

import (
	"errors"
	"fmt"

	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
)

const typenameField = "__typename"

// collectedField is every field node selected under one response key. The
// nodes share a field name and arguments; their sub-selections are merged
// when the value is completed.
type collectedField struct {
	ResponseName string
	Name         string
	Fields       []*document.Field
}

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []*collectedField
	index  map[string]int
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(field *document.Field) error {
	responseName := field.ResponseKey()
	idx, exists := cfm.index[responseName]
	if !exists {
		cfm.index[responseName] = len(cfm.fields)
		cfm.fields = append(cfm.fields, &collectedField{
			ResponseName: responseName,
			Name:         field.Name,
			Fields:       []*document.Field{field},
		})
		return nil
	}
	group := cfm.fields[idx]
	first := group.Fields[0]
	if first.Name != field.Name {
		return fmt.Errorf("%w: %q selects both %q and %q", ErrResponseKeyConflict, responseName, first.Name, field.Name)
	}
	if !document.EqualArguments(first.Arguments, field.Arguments) {
		return fmt.Errorf("%w: %q selects %q with different arguments", ErrResponseKeyConflict, responseName, field.Name)
	}
	group.Fields = append(group.Fields, field)
	return nil
}

func (cfm *collectedFieldMap) orderedFields() []*collectedField {
	return cfm.fields
}

// selectionSet merges the sub-selections of every node in the group.
func (cf *collectedField) selectionSet() document.SelectionSet {
	if len(cf.Fields) == 1 {
		return cf.Fields[0].SelectionSet
	}
	var merged document.SelectionSet
	for _, f := range cf.Fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// collectFields flattens a selection set for an object of objectType: fields
// in document order, spreads and applicable inline fragments inlined, and
// repeated response keys merged.
func collectFields(doc *document.Document, s *schema.Schema, b *Bindings, objectType *schema.Type, selectionSet document.SelectionSet) ([]*collectedField, error) {
	groupedFields := newCollectedFieldMap()
	visitedFragments := make(map[string]bool)

	if err := collectFieldsImpl(doc, s, b, objectType, selectionSet, groupedFields, visitedFragments); err != nil {
		return nil, err
	}
	return groupedFields.orderedFields(), nil
}

// collectFieldsImpl is the recursive implementation of field collection
func collectFieldsImpl(doc *document.Document, s *schema.Schema, b *Bindings, objectType *schema.Type, selectionSet document.SelectionSet, groupedFields *collectedFieldMap, visitedFragments map[string]bool) error {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *document.Field:
			if !shouldIncludeNode(b, sel.Directives) {
				continue
			}
			if err := groupedFields.add(sel); err != nil {
				return err
			}

		case *document.InlineFragment:
			if !shouldIncludeNode(b, sel.Directives) {
				continue
			}
			if !s.DoesTypeApply(objectType.Name, sel.TypeCondition) {
				continue
			}
			if err := collectFieldsImpl(doc, s, b, objectType, sel.SelectionSet, groupedFields, visitedFragments); err != nil {
				return err
			}

		case *document.FragmentSpread:
			if !shouldIncludeNode(b, sel.Directives) {
				continue
			}
			// A fragment contributes its fields once; later spreads of the same
			// fragment would only re-add identical nodes.
			if visitedFragments[sel.Name] {
				continue
			}
			def, err := resolveFragment(doc, s, sel, objectType.Name)
			if errors.Is(err, ErrFragmentTypeMismatch) {
				continue
			}
			if err != nil {
				return err
			}
			visitedFragments[sel.Name] = true
			if !shouldIncludeNode(b, def.Directives) {
				continue
			}
			if err := collectFieldsImpl(doc, s, b, objectType, def.SelectionSet, groupedFields, visitedFragments); err != nil {
				return err
			}
		}
	}
	return nil
}

// shouldIncludeNode checks if a node should be included based on directives
func shouldIncludeNode(b *Bindings, directives []*document.Directive) bool {
	if skip := document.DirectiveByName(directives, "skip"); skip != nil {
		if v, ok := directiveArgument(b, skip, "if").(bool); ok && v {
			return false
		}
	}
	if include := document.DirectiveByName(directives, "include"); include != nil {
		if v, ok := directiveArgument(b, include, "if").(bool); ok && !v {
			return false
		}
	}
	return true
}

func directiveArgument(b *Bindings, d *document.Directive, name string) any {
	arg := d.Argument(name)
	if arg == nil {
		return nil
	}
	v, _ := valueFromDocument(arg.Value, b)
	return v
}
