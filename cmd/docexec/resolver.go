package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	executor "github.com/hanpama/docexec/internal/executor"
	"github.com/hanpama/docexec/internal/grpcrt"
	maprt "github.com/hanpama/docexec/internal/maprt"
	reqid "github.com/hanpama/docexec/internal/reqid"
)

func newResolverCmd(a *app) *cobra.Command {
	var (
		listen   string
		services []string
		latency  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "resolver",
		Short: "Serve a JSON fixture as a FieldResolver gRPC service",
		Long: `Serve a JSON fixture as a FieldResolver gRPC service, for trying out
"serve --backend" without a real backend.`,
		Example: "docexec resolver --schema schema.graphql --fixture fixture.json --listen :9000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Fixture.Path == "" {
				return errors.New("fixture path is required (--fixture or fixture.path)")
			}
			sch, err := a.loadSchema()
			if err != nil {
				return err
			}
			root, err := maprt.LoadFixture(a.cfg.Fixture.Path)
			if err != nil {
				return err
			}
			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			gs := a.newResolverServer(maprt.New(sch, maprt.WithLatency(latency)), root, services)

			go func() {
				<-cmd.Context().Done()
				gs.GracefulStop()
			}()
			a.log.Info("resolver listening", zap.String("addr", lis.Addr().String()), zap.Strings("services", services))
			return gs.Serve(lis)
		},
	}
	f := cmd.Flags()
	f.StringVar(&listen, "listen", ":9000", "gRPC listen address")
	f.StringSliceVar(&services, "service", []string{grpcrt.ServiceName}, "service name to register; repeatable")
	f.DurationVar(&latency, "latency", 0, "artificial delay added to every call")
	f.String("fixture", "", "JSON file used as the root value")
	bindKey(f, "fixture", "fixture.path")
	return cmd
}

// newResolverServer registers a RuntimeServer for rt under every service
// name.
func (a *app) newResolverServer(rt executor.Runtime, root any, services []string) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(a.logCalls))
	srv := &grpcrt.RuntimeServer{Runtime: rt, Root: root}
	for _, name := range services {
		grpcrt.RegisterResolverServer(gs, srv, name)
	}
	return gs
}

func (a *app) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	log := a.log
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(reqid.Header); len(ids) > 0 {
			log = log.With(zap.String("request_id", ids[0]))
		}
	}
	log.Debug("resolve",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)))
	return resp, err
}
