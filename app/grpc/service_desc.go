package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses travel as google.protobuf.Struct documents that mirror the HTTP
// JSON bodies.
const ServiceName = "apisubscriptions.v1.APISubscriptionsService"

type APISubscriptionsServer interface {
	ListAPISubscriptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDeletedAPISubscriptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAPISubscription(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateOrUpdateAPISubscription(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteAPISubscription(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RegenerateAPISubscriptionKey(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv APISubscriptionsServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*APISubscriptionsServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("ListAPISubscriptions", APISubscriptionsServer.ListAPISubscriptions),
		methodDesc("ListDeletedAPISubscriptions", APISubscriptionsServer.ListDeletedAPISubscriptions),
		methodDesc("GetAPISubscription", APISubscriptionsServer.GetAPISubscription),
		methodDesc("CreateOrUpdateAPISubscription", APISubscriptionsServer.CreateOrUpdateAPISubscription),
		methodDesc("DeleteAPISubscription", APISubscriptionsServer.DeleteAPISubscription),
		methodDesc("RegenerateAPISubscriptionKey", APISubscriptionsServer.RegenerateAPISubscriptionKey),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "apisubscriptions/v1/api_subscriptions.proto",
}

func RegisterAPISubscriptionsServer(registrar grpc.ServiceRegistrar, srv APISubscriptionsServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// Invoke calls method on conn. It is what clients use in place of a
// generated stub.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, fullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func methodDesc(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(APISubscriptionsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(APISubscriptionsServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
