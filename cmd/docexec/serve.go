package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	eventbus "github.com/hanpama/docexec/internal/eventbus"
	logging "github.com/hanpama/docexec/internal/logging"
	metrics "github.com/hanpama/docexec/internal/metrics"
	otel "github.com/hanpama/docexec/internal/otel"
	server "github.com/hanpama/docexec/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "HTTP listen address")
	f.Bool("pretty", false, "pretty-print JSON responses")
	f.Duration("timeout", 10*time.Second, "per-request timeout")
	f.StringSlice("metadata-header", nil, "HTTP header forwarded into gRPC metadata; repeatable")
	f.StringSlice("cors-origin", nil, "allowed CORS origin; repeatable")
	f.Bool("introspection", true, "serve __schema and __type")
	f.StringSlice("backend", nil, "resolver endpoint as Service=host:port; repeatable")
	f.StringSlice("route", nil, "object type routed to a service as Type=Service; repeatable")
	f.String("fixture", "", "JSON file used as the root value instead of gRPC services")
	f.String("otel-endpoint", "", "OTLP collector endpoint")
	bindKey(f, "addr", "server.addr")
	bindKey(f, "pretty", "server.pretty")
	bindKey(f, "timeout", "server.timeout")
	bindKey(f, "metadata-header", "server.metadata_headers")
	bindKey(f, "cors-origin", "server.cors_origins")
	bindKey(f, "introspection", "server.introspection")
	bindKey(f, "backend", "backend.endpoints")
	bindKey(f, "route", "backend.services")
	bindKey(f, "fixture", "fixture.path")
	bindKey(f, "otel-endpoint", "otel.endpoint")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	sch, err := a.loadSchema()
	if err != nil {
		return err
	}
	rt, root, release, err := a.runtime(sch)
	if err != nil {
		return err
	}
	defer release()

	eventbus.Use(eventbus.New())
	defer logging.Subscribe(a.log)()
	defer metrics.NewMetrics().Subscribe()()
	shutdownOtel, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			a.log.Warn("otel shutdown", zap.Error(err))
		}
	}()

	opts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithMetadataHeaders(cfg.Server.MetadataHeaders...),
		server.WithCacheSize(cfg.DocumentCache.Size),
		server.WithIntrospection(cfg.Server.Introspection),
		server.WithRootValue(root),
		server.WithLogger(a.log),
		server.WithExecutorOptions(a.executorOptions()...),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	h, err := server.New(rt, sch, opts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewRouter(h, server.RouterOptions{
			CORSOrigins: cfg.Server.CORSOrigins,
			Metrics:     promhttp.Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server shutdown", zap.Error(err))
		}
	}()

	a.log.Info("GraphQL server listening", zap.String("addr", cfg.Server.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
