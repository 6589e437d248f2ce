package grpcrt

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Transport handles the actual gRPC communication.
// Implementations MUST be safe for concurrent use: the executor resolves
// sibling async fields from separate goroutines.
//
// Provided implementations:
// - internal/grpctp.Transport: pooled client with endpoint discovery and timeouts
// - ConnTransport: a single established connection
type Transport interface {
	// Call invokes service/method with req and decodes the reply into resp.
	Call(ctx context.Context, service, method string, req, resp proto.Message) error
}

// Invoker is the subset of *grpc.ClientConn used by ConnTransport.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// ConnTransport sends every call over one connection.
type ConnTransport struct {
	Conn Invoker
}

func (t ConnTransport) Call(ctx context.Context, service, method string, req, resp proto.Message) error {
	return t.Conn.Invoke(ctx, "/"+service+"/"+method, req, resp)
}
