package executor

import (
	"context"
)

// Runtime defines the host integration surface for field resolution, abstract
// type resolution, and leaf-value serialization used by the Executor.
//
// General contract
//   - Sibling fields flagged Async in the schema are resolved concurrently via
//     ResolveAsync, each in its own goroutine. Fields that are not Async are
//     resolved inline via ResolveSync and should be cheap projections of the
//     source value.
//   - A field's sub-selection is only executed after the field's own value has
//     been resolved.
//   - Every method may be called concurrently, both within one operation and
//     across operations. Implementations must be concurrency-safe and must not
//     mutate source or args values.
//   - Errors returned from any method are converted into located GraphQL errors.
//     If the field's return type is Non-Null, the Executor propagates the null
//     up to the nearest nullable ancestor.
//
// Object/field identifiers
// - objectType is the GraphQL type name (e.g. "User").
// - field is the GraphQL field name on that type (e.g. "posts").
// - For root fields, objectType is the root type name (e.g. "Query").
// - source is the parent object value (the root value for root fields).
// - args is the map of argument names to already-bound and coerced Go values.
//
// Abstract types and leaf values
//   - ResolveType must return the concrete type name for interface/union values.
//   - SerializeLeafValue must coerce/serialize scalars and enums into JSON-safe
//     Go values. For enums, return the enum name as string.
//
// Cancellation
//   - ctx is cancelled when the caller goes away, when the operation's time
//     budget is spent, or when a sibling failure nulled the parent object.
//     The Executor stops waiting for ResolveAsync as soon as ctx is done, so a
//     slow implementation only delays its own goroutine.
type Runtime interface {
	// ResolveSync resolves a synchronous field value immediately.
	//
	// Called only for fields declared as sync (Async == false).
	// Return (nil, nil) to produce a GraphQL null for nullable fields.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// ResolveAsync resolves one async field. A list value may contain error
	// elements; each such element fails on its own.
	ResolveAsync(ctx context.Context, task AsyncResolveTask) (any, error)

	// ResolveType determines the concrete runtime type name for a value of an
	// abstract GraphQL type (interface or union).
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value to a JSON-safe Go
	// value.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value.
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
	// Path is the response path of the field being resolved.
	Path Path
}
