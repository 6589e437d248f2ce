package events

import "time"

// HTTPStart is published once the request ID is assigned, before the body is
// read.
type HTTPStart struct {
	Method     string
	Path       string
	RemoteAddr string
}

// HTTPFinish is published after the response is written. Operations is the
// number of GraphQL operations the request carried: 1 for a single request,
// the batch length for a batch, 0 when the request was rejected before
// execution.
type HTTPFinish struct {
	Method     string
	Path       string
	Status     int
	Operations int
	Duration   time.Duration
}
