package executor

import (
	"fmt"
	"strings"

	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
)

// PreparedOperation is an operation that passed document validation against
// the executor's schema. It is immutable and may be executed any number of
// times, concurrently, with different variables.
type PreparedOperation struct {
	document  *document.Document
	operation *document.Operation
	rootType  *schema.Type
}

func (p *PreparedOperation) Name() string                 { return p.operation.Name }
func (p *PreparedOperation) Kind() document.OperationKind { return p.operation.Kind }
func (p *PreparedOperation) Document() *document.Document { return p.document }

// Prepare selects an operation from doc and validates everything that can be
// checked without data: fragment references, fragment cycles, fields, response
// key conflicts and selection depth.
func (e *Executor) Prepare(doc *document.Document, operationName string) (*PreparedOperation, error) {
	op, err := doc.Operation(operationName)
	if err != nil {
		return nil, err
	}
	rootName := e.schema.RootTypeName(string(op.Kind))
	rootType := e.schema.Types[rootName]
	if rootType == nil {
		return nil, fmt.Errorf("%w: schema has no root type for %s operations", ErrUnknownType, op.Kind)
	}

	v := newValidator(doc, e.schema, e.maxDepth)
	if err := v.checkFragments(op.SelectionSet); err != nil {
		return nil, err
	}
	occs, err := v.flatten(rootType, op.SelectionSet)
	if err != nil {
		return nil, err
	}
	if err := v.checkSet(occs, 1); err != nil {
		return nil, err
	}
	return &PreparedOperation{document: doc, operation: op, rootType: rootType}, nil
}

// validator checks one operation. Field nodes reached through fragments are
// shared between many selection sets, so sub-selections, nested sets and
// field pairs are each checked once and remembered.
type validator struct {
	doc      *document.Document
	schema   *schema.Schema
	maxDepth int

	subs     map[occKey][]occurrence
	nested   map[nestedKey]bool
	compared map[pairKey]bool
}

type occKey struct {
	parentType *schema.Type
	field      *document.Field
}

type nestedKey struct {
	occKey
	depth int
}

type pairKey struct {
	a, b      occKey
	exclusive bool
}

func newValidator(doc *document.Document, sch *schema.Schema, maxDepth int) *validator {
	return &validator{
		doc:      doc,
		schema:   sch,
		maxDepth: maxDepth,
		subs:     make(map[occKey][]occurrence),
		nested:   make(map[nestedKey]bool),
		compared: make(map[pairKey]bool),
	}
}

// checkFragments walks the fragments reachable from set and reports the first
// unknown fragment or cycle.
func (v *validator) checkFragments(set document.SelectionSet) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		def := v.doc.Fragment(name)
		if def == nil {
			if len(stack) > 0 {
				return fmt.Errorf("%w %q (spread in fragment %q)", ErrUnknownFragment, name, stack[len(stack)-1])
			}
			return fmt.Errorf("%w %q", ErrUnknownFragment, name)
		}
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrFragmentCycle, strings.Join(append(stack, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		for _, spread := range spreads(def.SelectionSet) {
			if err := visit(spread, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, spread := range spreads(set) {
		if err := visit(spread, nil); err != nil {
			return err
		}
	}
	return nil
}

func spreads(set document.SelectionSet) []string {
	var names []string
	document.Walk(set, func(sel document.Selection) {
		if s, ok := sel.(*document.FragmentSpread); ok {
			names = append(names, s.Name)
		}
	})
	return names
}

// occurrence is one field node together with the type it was selected on.
type occurrence struct {
	parentType *schema.Type
	field      *document.Field
	def        *schema.Field // nil for __typename
}

func (o occurrence) key() occKey { return occKey{o.parentType, o.field} }

// flatten expands fragments statically, keeping every field node along with
// the type condition it sits under. A fragment spread more than once under
// the same set is expanded once, and a field node reached twice under the
// same parent type is kept once.
func (v *validator) flatten(parent *schema.Type, set document.SelectionSet) ([]occurrence, error) {
	f := flattener{v: v, fragments: map[string]bool{}, fields: map[occKey]bool{}}
	if err := f.add(parent, set); err != nil {
		return nil, err
	}
	return f.out, nil
}

type flattener struct {
	v         *validator
	fragments map[string]bool
	fields    map[occKey]bool
	out       []occurrence
}

func (f *flattener) add(parent *schema.Type, set document.SelectionSet) error {
	for _, sel := range set {
		switch s := sel.(type) {
		case *document.Field:
			occ := occurrence{parentType: parent, field: s}
			if f.fields[occ.key()] {
				continue
			}
			f.fields[occ.key()] = true
			if err := f.v.checkField(&occ); err != nil {
				return err
			}
			f.out = append(f.out, occ)
		case *document.InlineFragment:
			t := parent
			if s.TypeCondition != "" {
				var err error
				if t, err = f.v.compositeType(s.TypeCondition); err != nil {
					return err
				}
			}
			if err := f.add(t, s.SelectionSet); err != nil {
				return err
			}
		case *document.FragmentSpread:
			if f.fragments[s.Name] {
				continue
			}
			f.fragments[s.Name] = true
			def := f.v.doc.Fragment(s.Name)
			if def == nil {
				return fmt.Errorf("%w %q", ErrUnknownFragment, s.Name)
			}
			t, err := f.v.compositeType(def.TypeCondition)
			if err != nil {
				return fmt.Errorf("fragment %q: %w", def.Name, err)
			}
			if err := f.add(t, def.SelectionSet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) compositeType(name string) (*schema.Type, error) {
	t := v.schema.Types[name]
	if t == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, name)
	}
	if t.IsLeaf() || t.Kind == schema.TypeKindInputObject {
		return nil, fmt.Errorf("%w: type condition %q is not a composite type", ErrInvalidSelection, name)
	}
	return t, nil
}

func (v *validator) checkField(occ *occurrence) error {
	f := occ.field
	if f.Name == typenameField {
		if len(f.SelectionSet) > 0 {
			return fmt.Errorf("%w: %s cannot have a selection set", ErrInvalidSelection, typenameField)
		}
		return nil
	}
	def := occ.parentType.Field(f.Name)
	if def == nil {
		return fmt.Errorf("%w: cannot query field %q on type %q", ErrUnknownField, f.Name, occ.parentType.Name)
	}
	occ.def = def
	named := v.schema.Types[def.Type.GetNamedType()]
	if named == nil {
		return fmt.Errorf("%w %q for field %s.%s", ErrUnknownType, def.Type.GetNamedType(), occ.parentType.Name, f.Name)
	}
	switch {
	case named.IsLeaf() && len(f.SelectionSet) > 0:
		return fmt.Errorf("%w: field %s.%s of type %s must not have a selection set", ErrInvalidSelection, occ.parentType.Name, f.Name, def.Type)
	case !named.IsLeaf() && len(f.SelectionSet) == 0:
		return fmt.Errorf("%w: field %s.%s of type %s must have a selection of subfields", ErrInvalidSelection, occ.parentType.Name, f.Name, def.Type)
	}
	return nil
}

func (v *validator) children(occ occurrence) ([]occurrence, error) {
	if occ.def == nil || len(occ.field.SelectionSet) == 0 {
		return nil, nil
	}
	if subs, ok := v.subs[occ.key()]; ok {
		return subs, nil
	}
	subs, err := v.flatten(v.schema.Types[occ.def.Type.GetNamedType()], occ.field.SelectionSet)
	if err != nil {
		return nil, err
	}
	v.subs[occ.key()] = subs
	return subs, nil
}

// checkSet checks the response keys of one merged selection set and recurses
// into sub-selections. depth is the nesting level of the fields in occs.
func (v *validator) checkSet(occs []occurrence, depth int) error {
	if v.maxDepth > 0 && depth > v.maxDepth && len(occs) > 0 {
		return fmt.Errorf("%w: %s.%s is nested %d levels deep (limit %d)", ErrMaxDepthExceeded, occs[0].parentType.Name, occs[0].field.Name, depth, v.maxDepth)
	}

	var keys []string
	groups := make(map[string][]occurrence)
	for _, occ := range occs {
		key := occ.field.ResponseKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], occ)
	}
	for _, key := range keys {
		group := groups[key]
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				if err := v.checkPair(key, group[i], group[j], false); err != nil {
					return err
				}
			}
		}
	}

	for _, occ := range occs {
		// The depth only matters when it is limited.
		nk := nestedKey{occKey: occ.key()}
		if v.maxDepth > 0 {
			nk.depth = depth
		}
		if v.nested[nk] {
			continue
		}
		children, err := v.children(occ)
		if err != nil {
			return err
		}
		if err := v.checkSet(children, depth+1); err != nil {
			return err
		}
		v.nested[nk] = true
	}
	return nil
}

// checkPair reports whether two fields selected under the same response key
// can be merged. Fields whose parent types can never describe the same object
// are exempt from the name and argument checks.
func (v *validator) checkPair(key string, a, b occurrence, exclusive bool) error {
	if a.field == b.field && a.parentType == b.parentType {
		return nil
	}
	exclusive = exclusive || !v.schema.Overlaps(a.parentType.Name, b.parentType.Name)
	pk := pairKey{a.key(), b.key(), exclusive}
	if v.compared[pk] {
		return nil
	}
	if err := v.comparePair(key, a, b, exclusive); err != nil {
		return err
	}
	v.compared[pk] = true
	return nil
}

func (v *validator) comparePair(key string, a, b occurrence, exclusive bool) error {
	if !exclusive {
		if a.field.Name != b.field.Name {
			return fmt.Errorf("%w: %q selects both %s.%s and %s.%s", ErrResponseKeyConflict, key,
				a.parentType.Name, a.field.Name, b.parentType.Name, b.field.Name)
		}
		if !document.EqualArguments(a.field.Arguments, b.field.Arguments) {
			return fmt.Errorf("%w: %q selects %s.%s with different arguments", ErrResponseKeyConflict, key,
				a.parentType.Name, a.field.Name)
		}
	}

	ca, err := v.children(a)
	if err != nil || len(ca) == 0 {
		return err
	}
	cb, err := v.children(b)
	if err != nil || len(cb) == 0 {
		return err
	}
	for _, x := range ca {
		for _, y := range cb {
			if x.field.ResponseKey() != y.field.ResponseKey() {
				continue
			}
			if err := v.checkPair(key+"."+x.field.ResponseKey(), x, y, exclusive); err != nil {
				return err
			}
		}
	}
	return nil
}
