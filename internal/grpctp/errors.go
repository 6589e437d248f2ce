package grpctp

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for a service.
	ErrNoEndpoints = errors.New("grpctp: no endpoints available")
	// ErrClosed is returned by calls on a closed transport.
	ErrClosed = errors.New("grpctp: closed")
)

// ServiceHeader carries the called service name in outgoing metadata.
const ServiceHeader = "x-docexec-service"
