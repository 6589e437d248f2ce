// Package otel exports traces built from event bus events.
package otel

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	eventbus "github.com/hanpama/docexec/internal/eventbus"
	events "github.com/hanpama/docexec/internal/events"
	reqid "github.com/hanpama/docexec/internal/reqid"
)

// Setup installs an OTLP/gRPC tracer provider as the global one and returns
// its shutdown. With an empty endpoint it does nothing.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(tp.Tracer("docexec"))

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe turns HTTP, GraphQL and gRPC client events on the global event
// bus into spans: http.request > graphql.operation > grpc.client.
func Subscribe(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer trace.Tracer
	http   spans[string] // by request ID
	gql    spans[string] // by request ID
	grpc   spans[uint64] // by call ID
}

// spans holds the open spans of one layer until their finish event arrives.
type spans[K comparable] struct{ m sync.Map }

func (s *spans[K]) open(k K, span trace.Span) { s.m.Store(k, span) }

func (s *spans[K]) get(k K) (trace.Span, bool) {
	v, ok := s.m.Load(k)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (s *spans[K]) close(k K) (trace.Span, bool) {
	v, ok := s.m.LoadAndDelete(k)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(s.httpStart),
		eventbus.Subscribe(s.httpFinish),
		eventbus.Subscribe(s.graphqlStart),
		eventbus.Subscribe(s.graphqlFinish),
		eventbus.Subscribe(s.grpcStart),
		eventbus.Subscribe(s.grpcFinish),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context, rid string, layers ...*spans[string]) context.Context {
	for _, l := range layers {
		if span, ok := l.get(rid); ok {
			return trace.ContextWithSpan(ctx, span)
		}
	}
	return ctx
}

func (s *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Method),
		attribute.String("http.target", e.Path),
		attribute.String("net.sock.peer.addr", e.RemoteAddr),
		attribute.String("request.id", rid),
	)
	s.http.open(rid, span)
}

func (s *subscriber) httpFinish(ctx context.Context, e events.HTTPFinish) {
	rid, _ := reqid.FromContext(ctx)
	span, ok := s.http.close(rid)
	if !ok {
		return
	}
	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(e.Status),
		attribute.Int("graphql.operation.count", e.Operations),
	)
	if e.Status >= 500 {
		span.SetStatus(codes.Error, "")
	}
	span.End()
}

func (s *subscriber) graphqlStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid, &s.http), "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.Name),
		attribute.String("graphql.operation.type", e.Type),
		attribute.String("graphql.document.hash", strconv.FormatUint(e.Hash, 16)),
		attribute.Bool("graphql.document.cached", e.Cached),
	)
	s.gql.open(rid, span)
}

func (s *subscriber) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	span, ok := s.gql.close(rid)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.Int("graphql.error_count", len(e.Errors)),
		attribute.StringSlice("graphql.error_codes", e.ErrorCodes),
	)
	if len(e.Errors) > 0 {
		span.SetStatus(codes.Error, e.Errors[0].Error())
	}
	span.End()
}

func (s *subscriber) grpcStart(ctx context.Context, e events.GRPCClientStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid, &s.gql, &s.http), "grpc.client", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.RPCSystemKey.String("grpc"),
		semconv.RPCServiceKey.String(e.Service),
		semconv.RPCMethodKey.String(e.Method),
		attribute.String("net.peer.name", e.Target),
	)
	s.grpc.open(e.ID, span)
}

func (s *subscriber) grpcFinish(ctx context.Context, e events.GRPCClientFinish) {
	span, ok := s.grpc.close(e.ID)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("grpc.code", e.Code.String()))
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End()
}
