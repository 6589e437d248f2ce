// Package language is the seam between docexec and gqlparser: query and SDL
// parsing, and the AST types the document and schema builders read.
package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses query text without validating it against a schema.
// Errors are *gqlerror.Error values carrying source locations.
func ParseQuery(source string) (*QueryDocument, error) {
	return parser.ParseQuery(&ast.Source{Name: "query", Input: source})
}

// LoadSchema parses and validates SDL sources, including the built-in prelude.
func LoadSchema(sources ...*Source) (*ast.Schema, error) {
	return gqlparser.LoadSchema(sources...)
}
