package events

import "time"

// Operation identifies an executed GraphQL operation. Hash is the document
// cache key derived from the query text and requested operation name.
type Operation struct {
	Name string
	Type string
	Hash uint64
}

type GraphQLStart struct {
	Operation
	// Cached reports whether the prepared operation came from the document
	// cache.
	Cached bool
}

type GraphQLFinish struct {
	Operation
	Errors []error
	// ErrorCodes holds the extensions.code of each error, in order.
	ErrorCodes []string
	Duration   time.Duration
}
