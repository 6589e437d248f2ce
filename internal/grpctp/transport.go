// Package grpctp is the network transport behind the gRPC resolver runtime.
// Endpoints are chosen round-robin per service, and each endpoint keeps a
// small set of shared client connections.
package grpctp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	eventbus "github.com/hanpama/docexec/internal/eventbus"
	events "github.com/hanpama/docexec/internal/events"
	"github.com/hanpama/docexec/internal/grpcrt"
)

var errNoProvider = errors.New("grpctp: provider not configured")

type Transport struct {
	opts Options

	mu     sync.Mutex
	pools  map[string]*connPool
	closed atomic.Bool

	calls atomic.Uint64
	picks atomic.Uint64
}

var _ grpcrt.Transport = (*Transport)(nil)

func New(opts ...Option) *Transport {
	o := Options{MaxConnsPerEndpoint: 2, RPCTimeout: 3 * time.Second}
	for _, f := range opts {
		f(&o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{opts: o, pools: map[string]*connPool{}}
}

// Call invokes /service/method on one of the service's endpoints. The
// service name travels in the ServiceHeader metadata key.
func (t *Transport) Call(ctx context.Context, service, method string, req, resp proto.Message) error {
	if t.opts.Provider == nil {
		return errNoProvider
	}
	if t.closed.Load() {
		return ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}

	endpoints, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}
	endpoint := endpoints[(t.picks.Add(1)-1)%uint64(len(endpoints))]

	cc, err := t.conn(ctx, endpoint)
	if err != nil {
		return err
	}

	ctx = metadata.AppendToOutgoingContext(ctx, ServiceHeader, service)
	call := events.GRPCCall{ID: t.calls.Add(1), Service: service, Method: method, Target: endpoint}
	start := time.Now()
	eventbus.Publish(ctx, events.GRPCClientStart{GRPCCall: call})
	err = cc.Invoke(ctx, "/"+service+"/"+method, req, resp)
	eventbus.Publish(ctx, events.GRPCClientFinish{
		GRPCCall: call,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	return err
}

// Close tears down every pooled connection. Calls made afterwards fail with
// ErrClosed.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	pools := t.pools
	t.pools = map[string]*connPool{}
	t.mu.Unlock()

	var errs []error
	for _, p := range pools {
		errs = append(errs, p.close())
	}
	return errors.Join(errs...)
}

func (t *Transport) conn(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	p, ok := t.pools[endpoint]
	if !ok {
		p = &connPool{target: endpoint, size: t.opts.MaxConnsPerEndpoint, dial: t.opts.DialOptions}
		t.pools[endpoint] = p
	}
	t.mu.Unlock()
	return p.get(ctx)
}

// connPool dials lazily until size connections exist, then hands them out in
// rotation. Connections are shared; callers never return them.
type connPool struct {
	target string
	size   int
	dial   []grpc.DialOption

	mu    sync.Mutex
	conns []*grpc.ClientConn
	next  int
	done  bool
}

func (p *connPool) get(ctx context.Context) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, ErrClosed
	}
	if len(p.conns) < max(p.size, 1) {
		cc, err := grpc.DialContext(ctx, p.target, p.dial...)
		if err != nil {
			return nil, err
		}
		p.conns = append(p.conns, cc)
		return cc, nil
	}
	cc := p.conns[p.next%len(p.conns)]
	p.next++
	return cc, nil
}

func (p *connPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	var errs []error
	for _, cc := range p.conns {
		errs = append(errs, cc.Close())
	}
	p.conns = nil
	return errors.Join(errs...)
}
