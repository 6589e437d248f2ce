package main

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hanpama/docexec/internal/document"
	executor "github.com/hanpama/docexec/internal/executor"
	"github.com/hanpama/docexec/internal/grpcrt"
	maprt "github.com/hanpama/docexec/internal/maprt"
	schema "github.com/hanpama/docexec/internal/schema"
)

func TestResolverServer_ServesFixture(t *testing.T) {
	sch, err := schema.LoadSDLFiles(homefeed("schema.graphql"))
	require.NoError(t, err)
	root, err := maprt.LoadFixture(homefeed("fixture.json"))
	require.NoError(t, err)
	doc, err := document.Load(homefeed("query.graphql"))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	a := &app{log: zap.New(core)}
	gs := a.newResolverServer(maprt.New(sch), root, []string{grpcrt.ServiceName})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	rt := grpcrt.NewRuntime(sch, grpcrt.ConnTransport{Conn: cc})
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "rid-1")
	res := executor.NewExecutor(rt, sch).ExecuteRequest(ctx, doc, "home", map[string]any{"input": map[string]any{}}, nil)
	require.Empty(t, res.Errors)

	home, ok := res.Data.Get("home")
	require.True(t, ok)
	reminders, _ := home.(*executor.OrderedMap).Get("reminders")
	assert.Len(t, reminders, 2)

	entries := logs.FilterMessage("resolve").All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/"+grpcrt.ServiceName+"/"+grpcrt.ResolveMethod, fields["method"])
	assert.Equal(t, "OK", fields["code"])
	assert.Equal(t, "rid-1", fields["request_id"])
}

func TestResolverCommand_RequiresFixture(t *testing.T) {
	_, err := run(t, "resolver", "--schema", homefeed("schema.graphql"))
	assert.ErrorContains(t, err, "fixture path is required")
}
