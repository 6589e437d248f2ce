package grpcrt

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	executor "github.com/hanpama/docexec/internal/executor"
)

const (
	// ServiceName is the default fully-qualified resolver service.
	ServiceName = "docexec.resolver.v1.FieldResolver"
	// ResolveMethod resolves one field.
	ResolveMethod = "Resolve"
)

// Request keys of the Resolve call. The request is a google.protobuf.Struct:
//
//	{objectType: string, field: string, source: any, args: object, path: [string|number]}
//
// and the reply is the field value as a google.protobuf.Value.
const (
	keyObjectType = "objectType"
	keyField      = "field"
	keySource     = "source"
	keyArgs       = "args"
	keyPath       = "path"
)

// ResolverServer is the server API for the FieldResolver service.
type ResolverServer interface {
	Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Value, error)
}

// RegisterResolverServer registers srv under name, or ServiceName when name
// is empty.
func RegisterResolverServer(s grpc.ServiceRegistrar, srv ResolverServer, name string) {
	if name == "" {
		name = ServiceName
	}
	desc := resolverServiceDesc
	desc.ServiceName = name
	s.RegisterService(&desc, srv)
}

var resolverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolverServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: ResolveMethod,
		Handler:    resolveHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docexec/resolver/v1/resolver.proto",
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResolverServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/" + ResolveMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResolverServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RuntimeServer serves Resolve calls from a local executor.Runtime. Root
// fields arrive without a source and resolve against Root.
type RuntimeServer struct {
	Runtime executor.Runtime
	Root    any
}

var _ ResolverServer = (*RuntimeServer)(nil)

func (s *RuntimeServer) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Value, error) {
	task, err := decodeTask(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if task.Source == nil {
		task.Source = s.Root
	}
	v, err := s.Runtime.ResolveSync(ctx, task.ObjectType, task.Field, task.Source, task.Args)
	if err != nil {
		return nil, status.Error(codes.Unknown, err.Error())
	}
	// JSON round trip: runtime values may hold json.Number or tagged structs.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s.%s: %v", task.ObjectType, task.Field, err)
	}
	out := new(structpb.Value)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s.%s: %v", task.ObjectType, task.Field, err)
	}
	return out, nil
}

func encodeTask(task executor.AsyncResolveTask) (*structpb.Struct, error) {
	path := make([]any, len(task.Path))
	for i, elem := range task.Path {
		path[i] = elem
	}
	args := task.Args
	if args == nil {
		args = map[string]any{}
	}
	req, err := structpb.NewStruct(map[string]any{
		keyObjectType: task.ObjectType,
		keyField:      task.Field,
		keyArgs:       args,
		keyPath:       path,
	})
	if err != nil {
		return nil, fmt.Errorf("encode args of %s.%s: %w", task.ObjectType, task.Field, err)
	}
	source, err := structpb.NewValue(task.Source)
	if err != nil {
		return nil, fmt.Errorf("encode source of %s.%s: %w", task.ObjectType, task.Field, err)
	}
	req.Fields[keySource] = source
	return req, nil
}

func decodeTask(req *structpb.Struct) (executor.AsyncResolveTask, error) {
	fields := req.GetFields()
	task := executor.AsyncResolveTask{
		ObjectType: fields[keyObjectType].GetStringValue(),
		Field:      fields[keyField].GetStringValue(),
		Source:     fields[keySource].AsInterface(),
		Args:       fields[keyArgs].GetStructValue().AsMap(),
	}
	if task.ObjectType == "" || task.Field == "" {
		return task, fmt.Errorf("request must name %s and %s", keyObjectType, keyField)
	}
	for _, v := range fields[keyPath].GetListValue().GetValues() {
		switch k := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			task.Path = append(task.Path, k.StringValue)
		case *structpb.Value_NumberValue:
			task.Path = append(task.Path, int(k.NumberValue))
		}
	}
	return task, nil
}
