package executor

import (
	"fmt"

	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
)

// resolveFragment returns the selections a spread contributes to an object of
// objectType. It fails with ErrUnknownFragment when the name is not defined and
// with ErrFragmentTypeMismatch when the type condition does not apply.
func resolveFragment(doc *document.Document, s *schema.Schema, spread *document.FragmentSpread, objectType string) (*document.FragmentDefinition, error) {
	def := doc.Fragment(spread.Name)
	if def == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownFragment, spread.Name)
	}
	if !s.DoesTypeApply(objectType, def.TypeCondition) {
		return nil, fmt.Errorf("%w: %q on %s spread into %s", ErrFragmentTypeMismatch, def.Name, def.TypeCondition, objectType)
	}
	return def, nil
}
