package alarm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/logger"
	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
	"github.com/oshokin/alarm-bridge/internal/serialport"
	"github.com/oshokin/alarm-bridge/internal/service/engine"
)

// eventBuffer is the per-stream subscription buffer.
const eventBuffer = 64

// Engine is the alarm core.
type Engine interface {
	Snapshot() engine.Snapshot
	TriggerTestAlarm(ctx context.Context, details map[string]any) (domain.State, bool)
	ManualStop(ctx context.Context) bool
}

// Link controls the serial connection on behalf of an operator.
type Link interface {
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	Paused() bool
}

// Port is the open serial port.
type Port interface {
	Port() (string, bool)
	Send(ctx context.Context, token string) error
}

// Events fans out collaborator events.
type Events interface {
	Subscribe(bufferSize int) (<-chan domain.Event, int)
	Unsubscribe(id int)
}

// Options holds the dependencies of a Server. All are required.
type Options struct {
	Engine Engine
	Link   Link
	Port   Port
	Events Events
}

// Server implements the AlarmBridge gRPC API.
type Server struct {
	pb.UnimplementedAlarmBridgeServer

	engine Engine
	link   Link
	port   Port
	events Events
}

// NewServer wires the dependencies into a gRPC handler.
func NewServer(opts Options) *Server {
	return &Server{
		engine: opts.Engine,
		link:   opts.Link,
		port:   opts.Port,
		events: opts.Events,
	}
}

// GetAlarmState returns the alarm, the device identity and the link state.
func (s *Server) GetAlarmState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.snapshot(), nil
}

func (s *Server) snapshot() *structpb.Struct {
	snap := s.engine.Snapshot()
	name, connected := s.port.Port()

	fields := map[string]*structpb.Value{
		pb.KeyAlarm:     structpb.NewStructValue(pb.StateToStruct(snap.Alarm)),
		pb.KeyHandshake: structpb.NewStringValue(snap.Handshake.String()),
		pb.KeyConnected: structpb.NewBoolValue(connected),
		pb.KeyPort:      structpb.NewStringValue(name),
		pb.KeyPaused:    structpb.NewBoolValue(s.link.Paused()),
		pb.KeyDevice:    structpb.NewNullValue(),
	}

	if snap.Device != nil {
		fields[pb.KeyDevice] = structpb.NewStructValue(pb.DeviceInfoToStruct(snap.Device))
	}

	return &structpb.Struct{Fields: fields}
}

// TriggerTestAlarm raises a manual test alarm. The request may carry
// "details" overriding the test patient, room and device.
func (s *Server) TriggerTestAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	details := engine.TestDetails()
	if custom := req.GetFields()[pb.KeyDetails].GetStructValue(); custom != nil {
		details = custom.AsMap()
	}

	state, activated := s.engine.TriggerTestAlarm(ctx, details)

	logger.InfoKV(ctx, "Test alarm requested", "activated", activated)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyActivated: structpb.NewBoolValue(activated),
		pb.KeyAlarm:     structpb.NewStructValue(pb.StateToStruct(state)),
	}}, nil
}

// StopAlarm clears the active alarm and acknowledges the stop to the device.
func (s *Server) StopAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	stopped := s.engine.ManualStop(ctx)

	logger.InfoKV(ctx, "Alarm stop requested", "stopped", stopped)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyStopped: structpb.NewBoolValue(stopped),
		pb.KeyAlarm:   structpb.NewStructValue(pb.StateToStruct(s.engine.Snapshot().Alarm)),
	}}, nil
}

// Connect opens the serial link and resumes automatic reconnection.
func (s *Server) Connect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	name, err := s.link.Connect(logger.WithName(ctx, "api"))
	if err != nil {
		return nil, linkStatus(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyConnected: structpb.NewBoolValue(true),
		pb.KeyPort:      structpb.NewStringValue(name),
	}}, nil
}

// Disconnect closes the serial link and pauses automatic reconnection.
func (s *Server) Disconnect(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.link.Disconnect(logger.WithName(ctx, "api")); err != nil {
		return nil, linkStatus(err)
	}

	return new(emptypb.Empty), nil
}

// SendRaw writes one line to the device.
func (s *Server) SendRaw(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	text := strings.TrimSpace(req.GetValue())
	if text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}

	if strings.ContainsAny(text, "\r\n") {
		return nil, status.Error(codes.InvalidArgument, "text must be a single line")
	}

	if err := s.port.Send(logger.WithName(ctx, "api"), text); err != nil {
		return nil, linkStatus(err)
	}

	return new(emptypb.Empty), nil
}

// WatchEvents streams collaborator events until the client goes away.
func (s *Server) WatchEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := logger.WithName(stream.Context(), "api")

	events, id := s.events.Subscribe(eventBuffer)
	defer s.events.Unsubscribe(id)

	logger.DebugKV(ctx, "Event watcher attached", "subscription", id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if err := stream.Send(pb.EventToStruct(ev)); err != nil {
				return err //nolint:wrapcheck // status error from the transport.
			}
		}
	}
}

// withActor scopes the log context to whoever issued req.
func withActor(ctx context.Context, req *structpb.Struct) context.Context {
	ctx = logger.WithName(ctx, "api")

	if actor := pb.ActorFromStruct(req); actor != nil {
		ctx = logger.WithKV(ctx, "hostname", actor.Hostname, "username", actor.Username)
	}

	return ctx
}

// linkStatus maps serial link errors to status codes.
func linkStatus(err error) error {
	switch {
	case errors.Is(err, serialport.ErrNotConnected):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, serialport.ErrNoPortAvailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
