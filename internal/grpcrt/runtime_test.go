package grpcrt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/docexec/internal/document"
	executor "github.com/hanpama/docexec/internal/executor"
	maprt "github.com/hanpama/docexec/internal/maprt"
	schema "github.com/hanpama/docexec/internal/schema"
)

var homefeedDir = filepath.Join("..", "..", "testdata", "homefeed")

// serve starts srv on an in-memory listener under each service name and
// returns a transport connected to it.
func serve(t *testing.T, srv ResolverServer, names ...string) Transport {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	if len(names) == 0 {
		names = []string{""}
	}
	for _, name := range names {
		RegisterResolverServer(gs, srv, name)
	}
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return ConnTransport{Conn: cc}
}

type recordingServer struct {
	mu    sync.Mutex
	calls []executor.AsyncResolveTask
	reply func(task executor.AsyncResolveTask) (any, error)
}

func (s *recordingServer) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Value, error) {
	task, err := decodeTask(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.mu.Lock()
	s.calls = append(s.calls, task)
	s.mu.Unlock()
	v, err := s.reply(task)
	if err != nil {
		return nil, err
	}
	return structpb.NewValue(v)
}

func loadHomefeed(t *testing.T) (*schema.Schema, *document.Document, map[string]any) {
	t.Helper()
	sch, err := schema.LoadSDLFiles(filepath.Join(homefeedDir, "schema.graphql"))
	require.NoError(t, err)
	doc, err := document.Load(filepath.Join(homefeedDir, "query.graphql"))
	require.NoError(t, err)
	root, err := maprt.LoadFixture(filepath.Join(homefeedDir, "fixture.json"))
	require.NoError(t, err)
	return sch, doc, root
}

func TestRuntime_HomeFeedOverGRPC(t *testing.T) {
	sch, doc, root := loadHomefeed(t)
	transport := serve(t, &RuntimeServer{Runtime: maprt.New(sch), Root: root})

	res := executor.NewExecutor(NewRuntime(sch, transport), sch).ExecuteRequest(context.Background(), doc, "home",
		map[string]any{"input": map[string]any{}}, nil)
	require.Empty(t, res.Errors)

	out, err := json.Marshal(res.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"home": {
		"notes": [
			{
				"id": "n1",
				"created_at": "2024-05-01T09:00:00Z",
				"labels": [
					{"id": "l1", "color": "#ff0000", "label": "urgent"},
					{"id": "l2", "color": null, "label": "home"}
				],
				"owner": {"id": "u1", "handle": "alice"},
				"you": {"canDelete": true, "canUpdate": true}
			},
			{
				"id": "n2",
				"created_at": "2024-05-02T10:30:00Z",
				"labels": [],
				"owner": {"id": "o1", "handle": "acme"},
				"you": {"canDelete": false, "canUpdate": true}
			}
		],
		"reminders": [
			{"id": "r1", "name": "Water plants"},
			{"id": "r2", "name": "Call Bob"}
		]
	}}`, string(out))
}

func TestRuntime_ResolveAsyncRequest(t *testing.T) {
	srv := &recordingServer{reply: func(task executor.AsyncResolveTask) (any, error) {
		return []any{"a", "b"}, nil
	}}
	rt := NewRuntime(schema.NewSchema(""), serve(t, srv))

	got, err := rt.ResolveAsync(context.Background(), executor.AsyncResolveTask{
		ObjectType: "Note",
		Field:      "tags",
		Source:     map[string]any{"id": "n1"},
		Args:       map[string]any{"first": 2, "filter": map[string]any{"prefix": "x"}},
		Path:       executor.Path{"home", "notes", 0, "tags"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)

	want := []executor.AsyncResolveTask{{
		ObjectType: "Note",
		Field:      "tags",
		Source:     map[string]any{"id": "n1"},
		Args:       map[string]any{"first": float64(2), "filter": map[string]any{"prefix": "x"}},
		Path:       executor.Path{"home", "notes", 0, "tags"},
	}}
	if diff := cmp.Diff(want, srv.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_RemoteErrors(t *testing.T) {
	srv := &recordingServer{reply: func(task executor.AsyncResolveTask) (any, error) {
		if task.Field == "denied" {
			return nil, status.Error(codes.PermissionDenied, "not yours")
		}
		return nil, errors.New("note n9 not found")
	}}
	rt := NewRuntime(schema.NewSchema(""), serve(t, srv))
	ctx := context.Background()

	_, err := rt.ResolveAsync(ctx, executor.AsyncResolveTask{ObjectType: "Query", Field: "note"})
	assert.EqualError(t, err, "note n9 not found")

	_, err = rt.ResolveAsync(ctx, executor.AsyncResolveTask{ObjectType: "Query", Field: "denied"})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, codes.PermissionDenied, remote.Code)
	assert.EqualError(t, err, "PermissionDenied: not yours")
}

func TestRuntime_RemoteErrorOnNonNullRoot(t *testing.T) {
	sch, doc, _ := loadHomefeed(t)
	srv := &recordingServer{reply: func(task executor.AsyncResolveTask) (any, error) {
		return nil, errors.New("home feed is unavailable")
	}}
	rt := NewRuntime(sch, serve(t, srv))

	res := executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "",
		map[string]any{"input": map[string]any{}}, nil)

	assert.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "home feed is unavailable", res.Errors[0].Message)
	assert.Equal(t, executor.Path{"home"}, res.Errors[0].Path)
}

func TestRuntime_WithServices(t *testing.T) {
	srv := &recordingServer{reply: func(task executor.AsyncResolveTask) (any, error) {
		return task.ObjectType, nil
	}}
	transport := serve(t, srv, "notes.v1.Notes", ServiceName)

	var routed []string
	rt := NewRuntime(schema.NewSchema(""), routeRecorder{transport, &routed},
		WithServices(map[string]string{"Note": "notes.v1.Notes"}))

	for _, typ := range []string{"Note", "Query"} {
		got, err := rt.ResolveAsync(context.Background(), executor.AsyncResolveTask{ObjectType: typ, Field: "f"})
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	assert.Equal(t, []string{"notes.v1.Notes", ServiceName}, routed)
}

type routeRecorder struct {
	Transport
	services *[]string
}

func (r routeRecorder) Call(ctx context.Context, service, method string, req, resp proto.Message) error {
	*r.services = append(*r.services, service)
	return r.Transport.Call(ctx, service, method, req, resp)
}

func TestRuntimeServer_RejectsIncompleteRequest(t *testing.T) {
	srv := &RuntimeServer{Runtime: maprt.New(schema.NewSchema(""))}

	req, err := structpb.NewStruct(map[string]any{"field": "home"})
	require.NoError(t, err)
	_, err = srv.Resolve(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEncodeTask_UnsupportedSource(t *testing.T) {
	_, err := encodeTask(executor.AsyncResolveTask{ObjectType: "Query", Field: "home", Source: struct{}{}})
	assert.ErrorContains(t, err, "encode source of Query.home")
}
