package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// GRPCCall identifies one outgoing resolver call. ID is unique per transport
// and pairs the start and finish events.
type GRPCCall struct {
	ID      uint64
	Service string
	Method  string
	Target  string
}

type GRPCClientStart struct {
	GRPCCall
}

type GRPCClientFinish struct {
	GRPCCall
	Code     codes.Code
	Err      error
	Duration time.Duration
}
