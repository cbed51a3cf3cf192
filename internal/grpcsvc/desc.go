package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const moduleServiceName = "umproxy.ModuleService"

// The manager's module contract is map-shaped: status, metrics, and
// stats documents whose keys vary per module. The wire types are the
// protobuf well-known Struct/Empty, so the service descriptor is written
// by hand instead of generated from a .proto file.
var moduleServiceDesc = grpc.ServiceDesc{
	ServiceName: moduleServiceName,
	HandlerType: (*ModuleService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: docHandler(ModuleService.GetStatus)},
		{MethodName: "GetMetrics", Handler: docHandler(ModuleService.GetMetrics)},
		{MethodName: "GetStats", Handler: docHandler(ModuleService.GetStats)},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
		{MethodName: "Reload", Handler: lifecycleHandler(ModuleService.Reload)},
		{MethodName: "Shutdown", Handler: lifecycleHandler(ModuleService.Shutdown)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "umproxy/module_service.proto",
}

type unaryHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

// docHandler adapts a document-returning ModuleService method into a
// unary Empty -> Struct handler. The server installs no interceptors, so
// the interceptor argument is ignored.
func docHandler(call func(ModuleService, context.Context) (map[string]interface{}, error)) unaryHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
		if err := dec(new(emptypb.Empty)); err != nil {
			return nil, err
		}
		doc, err := call(srv.(ModuleService), ctx)
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(doc)
	}
}

// lifecycleHandler adapts Reload/Shutdown into a unary handler taking a
// Struct request with an optional boolean "graceful" field.
func lifecycleHandler(call func(ModuleService, context.Context, bool) error) unaryHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(structpb.Struct)
		if err := dec(req); err != nil {
			return nil, err
		}
		graceful := req.GetFields()["graceful"].GetBoolValue()
		if err := call(srv.(ModuleService), ctx, graceful); err != nil {
			return nil, err
		}
		return new(emptypb.Empty), nil
	}
}

func healthCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	if err := dec(new(emptypb.Empty)); err != nil {
		return nil, err
	}
	state, err := srv.(ModuleService).HealthCheck(ctx)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{"state": state})
}
