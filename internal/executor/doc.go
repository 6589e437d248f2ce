// Package executor executes operations of a pre-parsed GraphQL document
// against a schema, with explicit runtime hooks for synchronous projection,
// concurrent asynchronous resolution, abstract-type resolution, and leaf
// serialization.
//
// # Overview
//
// Execution is split in two phases:
//   - Prepare validates a document once: the operation is selected, every
//     fragment spread reachable from it must name a defined fragment, fragments
//     must not form cycles, fields must exist on their parent types, fields
//     merged under one response key must agree on name and arguments, and the
//     selection must not nest deeper than the configured limit. The resulting
//     PreparedOperation is immutable.
//   - Execute binds the caller's variables and walks the selection tree. The
//     same PreparedOperation may be executed concurrently with different
//     variables; nothing is re-walked except the selections themselves.
//
// Document errors and variable errors are reported before any field executes,
// in a result without data.
//
// # Field Collection
//
// For an object of a concrete type, the selection set is flattened in document
// order: fields are grouped under their response key (alias or name), fragment
// spreads are inlined when their type condition applies to the object type,
// and inline fragments likewise. A type condition applies when it names the
// object type itself, an interface the object implements, or a union that
// contains it. A fragment whose condition does not apply contributes nothing.
// Each fragment is inlined at most once per collection, so spreading it twice
// at the same site is the same as spreading it once. @skip and @include are
// honoured on fields, spreads and inline fragments.
//
// # Execution Model
//
// Within one selection set, fields flagged Async in the schema are resolved in
// their own goroutines while the remaining fields are projected inline via
// Runtime.ResolveSync. Results are written into slots allocated in selection
// order, so the response key order never depends on completion order. A
// field's sub-selection starts only after its own value resolved. Elements of
// a list complete concurrently when their type can reach an async field.
//
// WithMaxConcurrency bounds the number of in-flight ResolveAsync calls of an
// operation. WithTimeout gives the whole operation a wall-clock budget; when
// it expires every pending branch fails with ErrOperationTimeout and follows
// the null propagation rules below. If the caller's context is cancelled the
// result carries no data and a single OPERATION_CANCELLED error.
//
// # Null Propagation
//
// A failed field produces a FieldResolutionError. Nullable positions (fields
// and list elements whose type is not Non-Null) catch errors from their
// subtree: the position becomes null and exactly one error is recorded at its
// path. A Non-Null position passes the error to its parent, so the nearest
// nullable ancestor is nulled and records the error at its own path, with the
// path of the failing field in the "origin" extension. When an object is
// nulled this way its still-running sibling branches are cancelled and errors
// caused by that cancellation are dropped. If the error reaches a Non-Null
// root field the response data is null.
//
// A failing element of a list with Non-Null elements fails the whole list
// with a ListExecutionError carrying the lowest failing index.
//
// Errors gathered from concurrent branches are returned in document order.
//
// # Runtime Contract
//
// The Runtime interface abstracts host integration:
//   - ResolveSync: project synchronous fields from the source value.
//   - ResolveAsync: resolve one async field; called concurrently.
//   - ResolveType: resolve concrete object type names for interface/union values.
//   - SerializeLeafValue: serialize scalars and enums to JSON-safe Go values.
//
// See runtime.go for detailed method contracts.
package executor
