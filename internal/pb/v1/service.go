package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "alarmbridge.v1.AlarmBridge"

// Full method names.
const (
	AlarmBridge_GetAlarmState_FullMethodName    = "/alarmbridge.v1.AlarmBridge/GetAlarmState"
	AlarmBridge_TriggerTestAlarm_FullMethodName = "/alarmbridge.v1.AlarmBridge/TriggerTestAlarm"
	AlarmBridge_StopAlarm_FullMethodName        = "/alarmbridge.v1.AlarmBridge/StopAlarm"
	AlarmBridge_Connect_FullMethodName          = "/alarmbridge.v1.AlarmBridge/Connect"
	AlarmBridge_Disconnect_FullMethodName       = "/alarmbridge.v1.AlarmBridge/Disconnect"
	AlarmBridge_SendRaw_FullMethodName          = "/alarmbridge.v1.AlarmBridge/SendRaw"
	AlarmBridge_WatchEvents_FullMethodName      = "/alarmbridge.v1.AlarmBridge/WatchEvents"
)

// AlarmBridgeServer is the server API for the AlarmBridge service.
type AlarmBridgeServer interface {
	// GetAlarmState returns a snapshot of alarm, device and link state.
	GetAlarmState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// TriggerTestAlarm raises a manual test alarm.
	TriggerTestAlarm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// StopAlarm stops the active alarm.
	StopAlarm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Connect opens the serial link.
	Connect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Disconnect closes the serial link.
	Disconnect(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// SendRaw writes one line to the device.
	SendRaw(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// WatchEvents streams collaborator events until the client goes away.
	WatchEvents(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedAlarmBridgeServer can be embedded to have forward compatible implementations.
type UnimplementedAlarmBridgeServer struct{}

func (UnimplementedAlarmBridgeServer) GetAlarmState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAlarmState not implemented")
}

func (UnimplementedAlarmBridgeServer) TriggerTestAlarm(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TriggerTestAlarm not implemented")
}

func (UnimplementedAlarmBridgeServer) StopAlarm(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method StopAlarm not implemented")
}

func (UnimplementedAlarmBridgeServer) Connect(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Connect not implemented")
}

func (UnimplementedAlarmBridgeServer) Disconnect(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Disconnect not implemented")
}

func (UnimplementedAlarmBridgeServer) SendRaw(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SendRaw not implemented")
}

func (UnimplementedAlarmBridgeServer) WatchEvents(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method WatchEvents not implemented")
}

// RegisterAlarmBridgeServer registers srv on s.
func RegisterAlarmBridgeServer(s grpc.ServiceRegistrar, srv AlarmBridgeServer) {
	s.RegisterService(&AlarmBridge_ServiceDesc, srv)
}

// unary builds a method handler for a unary RPC.
func unary[Req any](
	fullMethod string,
	call func(srv AlarmBridgeServer, ctx context.Context, req *Req) (any, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(AlarmBridgeServer), ctx, in) //nolint:forcetypeassert // guaranteed by HandlerType
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AlarmBridgeServer), ctx, req.(*Req)) //nolint:forcetypeassert // guaranteed by HandlerType
		}

		return interceptor(ctx, in, info, handler)
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	//nolint:forcetypeassert // guaranteed by HandlerType
	return srv.(AlarmBridgeServer).WatchEvents(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// AlarmBridge_ServiceDesc is the grpc.ServiceDesc for the AlarmBridge service.
//
//nolint:gochecknoglobals // grpc.RegisterService takes the descriptor by pointer.
var AlarmBridge_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmBridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAlarmState",
			Handler: unary(AlarmBridge_GetAlarmState_FullMethodName,
				func(srv AlarmBridgeServer, ctx context.Context, req *emptypb.Empty) (any, error) {
					return srv.GetAlarmState(ctx, req)
				}),
		},
		{
			MethodName: "TriggerTestAlarm",
			Handler: unary(AlarmBridge_TriggerTestAlarm_FullMethodName,
				func(srv AlarmBridgeServer, ctx context.Context, req *structpb.Struct) (any, error) {
					return srv.TriggerTestAlarm(ctx, req)
				}),
		},
		{
			MethodName: "StopAlarm",
			Handler: unary(AlarmBridge_StopAlarm_FullMethodName,
				func(srv AlarmBridgeServer, ctx context.Context, req *structpb.Struct) (any, error) {
					return srv.StopAlarm(ctx, req)
				}),
		},
		{
			MethodName: "Connect",
			Handler: unary(AlarmBridge_Connect_FullMethodName,
				func(srv AlarmBridgeServer, ctx context.Context, req *emptypb.Empty) (any, error) {
					return srv.Connect(ctx, req)
				}),
		},
		{
			MethodName: "Disconnect",
			Handler: unary(AlarmBridge_Disconnect_FullMethodName,
				func(srv AlarmBridgeServer, ctx context.Context, req *emptypb.Empty) (any, error) {
					return srv.Disconnect(ctx, req)
				}),
		},
		{
			MethodName: "SendRaw",
			Handler: unary(AlarmBridge_SendRaw_FullMethodName,
				func(srv AlarmBridgeServer, ctx context.Context, req *wrapperspb.StringValue) (any, error) {
					return srv.SendRaw(ctx, req)
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
}

// AlarmBridgeClient is the client API for the AlarmBridge service.
type AlarmBridgeClient interface {
	GetAlarmState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	TriggerTestAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StopAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Connect(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Disconnect(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	SendRaw(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	WatchEvents(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type alarmBridgeClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmBridgeClient returns a client over cc.
//
//nolint:ireturn // mirrors generated client constructors.
func NewAlarmBridgeClient(cc grpc.ClientConnInterface) AlarmBridgeClient {
	return &alarmBridgeClient{cc}
}

// invoke performs a unary call into a fresh Res.
func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)

	if err := cc.Invoke(ctx, method, in, out, cOpts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alarmBridgeClient) GetAlarmState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, AlarmBridge_GetAlarmState_FullMethodName, in, opts)
}

func (c *alarmBridgeClient) TriggerTestAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, AlarmBridge_TriggerTestAlarm_FullMethodName, in, opts)
}

func (c *alarmBridgeClient) StopAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, AlarmBridge_StopAlarm_FullMethodName, in, opts)
}

func (c *alarmBridgeClient) Connect(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, AlarmBridge_Connect_FullMethodName, in, opts)
}

func (c *alarmBridgeClient) Disconnect(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, AlarmBridge_Disconnect_FullMethodName, in, opts)
}

func (c *alarmBridgeClient) SendRaw(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, AlarmBridge_SendRaw_FullMethodName, in, opts)
}

//nolint:ireturn // mirrors generated streaming clients.
func (c *alarmBridgeClient) WatchEvents(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)

	stream, err := c.cc.NewStream(ctx, &AlarmBridge_ServiceDesc.Streams[0], AlarmBridge_WatchEvents_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
