// Package grpcrt implements executor.Runtime for fields served by remote
// FieldResolver services. Async fields are resolved with one gRPC call each;
// everything else is answered locally from the values those calls returned.
package grpcrt

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	executor "github.com/hanpama/docexec/internal/executor"
	maprt "github.com/hanpama/docexec/internal/maprt"
	schema "github.com/hanpama/docexec/internal/schema"
)

// Router names the gRPC service that resolves objectType.field.
type Router func(objectType, field string) string

// Runtime implements executor.Runtime for the gRPC-backed bridge.
//   - ResolveAsync performs one Resolve call per task. Transports must be
//     concurrency-safe.
//   - ResolveSync, ResolveType and SerializeLeafValue never perform I/O: reply
//     values are JSON-like and handled the way maprt handles them.
type Runtime struct {
	*maprt.Runtime

	transport Transport
	route     Router
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithRouter selects the service per field. By default every field goes to
// ServiceName.
func WithRouter(r Router) Option {
	return func(rt *Runtime) { rt.route = r }
}

// WithServices routes every field of the named object types to a service.
// Types not listed go to ServiceName.
func WithServices(byType map[string]string) Option {
	return WithRouter(func(objectType, field string) string {
		if s, ok := byType[objectType]; ok {
			return s
		}
		return ServiceName
	})
}

func NewRuntime(s *schema.Schema, transport Transport, opts ...Option) *Runtime {
	rt := &Runtime{
		Runtime:   maprt.New(s),
		transport: transport,
		route:     func(string, string) string { return ServiceName },
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// ResolveAsync sends the task to the service routed for its field.
func (r *Runtime) ResolveAsync(ctx context.Context, task executor.AsyncResolveTask) (any, error) {
	req, err := encodeTask(task)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Value)
	if err := r.transport.Call(ctx, r.route(task.ObjectType, task.Field), ResolveMethod, req, resp); err != nil {
		return nil, remoteError(err)
	}
	return resp.AsInterface(), nil
}

// RemoteError is a failure reported by a resolver service.
type RemoteError struct {
	Code    codes.Code
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == codes.Unknown {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func remoteError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled, codes.DeadlineExceeded:
		return err
	}
	return &RemoteError{Code: st.Code(), Message: st.Message()}
}
