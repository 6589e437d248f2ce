package grpctp

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures a Transport. Fields left zero keep their defaults.
type Options struct {
	// Provider maps service names to endpoints. Calls fail without one.
	Provider EndpointProvider
	// MaxConnsPerEndpoint caps the client connections kept per endpoint.
	// Default 2.
	MaxConnsPerEndpoint int
	// RPCTimeout bounds calls whose context carries no deadline. Default 3s;
	// zero leaves such calls unbounded.
	RPCTimeout time.Duration
	// DialOptions replace the default insecure credentials and backoff.
	DialOptions []grpc.DialOption
}

type Option func(*Options)

func WithProvider(p EndpointProvider) Option {
	return func(o *Options) { o.Provider = p }
}

func WithMaxConnsPerEndpoint(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxConnsPerEndpoint = n
		}
	}
}

func WithRPCTimeout(d time.Duration) Option {
	return func(o *Options) { o.RPCTimeout = d }
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = append([]grpc.DialOption(nil), opts...) }
}
