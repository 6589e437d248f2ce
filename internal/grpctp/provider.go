package grpctp

import (
	"context"
	"fmt"
	"strings"
)

// EndpointProvider resolves a fully-qualified gRPC service name to the
// host:port endpoints serving it. It must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// StaticEndpoints is a fixed service-to-endpoints table.
type StaticEndpoints map[string][]string

// NewStaticEndpoints copies m, so later changes to it are not observed.
func NewStaticEndpoints(m map[string][]string) StaticEndpoints {
	s := make(StaticEndpoints, len(m))
	for service, endpoints := range m {
		s[service] = append([]string(nil), endpoints...)
	}
	return s
}

func (s StaticEndpoints) Endpoints(_ context.Context, service string) ([]string, error) {
	endpoints := s[service]
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, service)
	}
	return endpoints, nil
}

// ParseEndpoints reads "Service=host:port" entries. Repeating a service adds
// endpoints to it.
func ParseEndpoints(entries []string) (map[string][]string, error) {
	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		service, endpoint, ok := strings.Cut(strings.TrimSpace(e), "=")
		service, endpoint = strings.TrimSpace(service), strings.TrimSpace(endpoint)
		if !ok || service == "" || endpoint == "" {
			return nil, fmt.Errorf("grpctp: endpoint %q is not of the form Service=host:port", e)
		}
		out[service] = append(out[service], endpoint)
	}
	return out, nil
}
