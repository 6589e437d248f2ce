// Package metrics exposes Prometheus collectors fed from the event bus.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	eventbus "github.com/hanpama/docexec/internal/eventbus"
	events "github.com/hanpama/docexec/internal/events"
)

const namespace = "docexec"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Operations
	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	OperationErrors     *prometheus.CounterVec
	DocumentCacheLookup *prometheus.CounterVec

	// Resolver backends
	GRPCCallsTotal   *prometheus.CounterVec
	GRPCCallDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics with the default registry.
func NewMetrics() *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewTestMetrics creates metrics backed by a throw-away registry.
func NewTestMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return newMetrics(promauto.With(reg)), reg
}

func newMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   durationBuckets,
		}, []string{"method"}),

		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total GraphQL operations executed, by type and outcome.",
		}, []string{"type", "outcome"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "GraphQL operation duration in seconds.",
			Buckets:   durationBuckets,
		}, []string{"type"}),

		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "GraphQL errors reported, by extensions.code.",
		}, []string{"code"}),

		DocumentCacheLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_lookups_total",
			Help:      "Prepared document cache lookups.",
		}, []string{"result"}),

		GRPCCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_client_calls_total",
			Help:      "Total resolver calls, by service and status code.",
		}, []string{"service", "code"}),

		GRPCCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_client_call_duration_seconds",
			Help:      "Resolver call duration in seconds.",
			Buckets:   durationBuckets,
		}, []string{"service"}),
	}
}

// Subscribe records events from the global event bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			m.HTTPRequestsTotal.WithLabelValues(e.Method, strconv.Itoa(e.Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(e.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			result := "miss"
			if e.Cached {
				result = "hit"
			}
			m.DocumentCacheLookup.WithLabelValues(result).Inc()
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			outcome := "ok"
			if len(e.Errors) > 0 {
				outcome = "error"
			}
			m.OperationsTotal.WithLabelValues(e.Type, outcome).Inc()
			m.OperationDuration.WithLabelValues(e.Type).Observe(e.Duration.Seconds())
			for _, code := range e.ErrorCodes {
				m.OperationErrors.WithLabelValues(code).Inc()
			}
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientFinish) {
			m.GRPCCallsTotal.WithLabelValues(e.Service, e.Code.String()).Inc()
			m.GRPCCallDuration.WithLabelValues(e.Service).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
