//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/alarm-bridge/internal/config"
	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
)

// Client wraps the AlarmBridge gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the bridge.
	conn *grpc.ClientConn
	// api is the AlarmBridge client interface.
	api pb.AlarmBridgeClient

	// dialOptions are appended to the default transport options.
	dialOptions []grpc.DialOption
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions adds gRPC dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errTextRequired is returned when SendRaw is called with nothing to send.
	errTextRequired = errors.New("text must be provided")
)

// Dial establishes a gRPC connection to the bridge.
// Note: this uses insecure transport credentials; the bridge listens on
// localhost by default.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial alarm bridge: %w", err)
	}

	client.conn = conn
	client.api = pb.NewAlarmBridgeClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetAlarmState retrieves the bridge snapshot.
func (c *Client) GetAlarmState(ctx context.Context) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetAlarmState(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get alarm state: %w", err)
	}

	return resp, nil
}

// TriggerTestAlarm raises a manual test alarm. Nil details use the test identity.
func (c *Client) TriggerTestAlarm(
	ctx context.Context,
	actor *pb.Actor,
	details map[string]any,
) (*structpb.Struct, error) {
	request := newRequest(actor)

	if details != nil {
		value, err := structpb.NewStruct(details)
		if err != nil {
			return nil, fmt.Errorf("encode details: %w", err)
		}

		request.Fields[pb.KeyDetails] = structpb.NewStructValue(value)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.TriggerTestAlarm(callCtx, request)
	if err != nil {
		return nil, fmt.Errorf("trigger test alarm: %w", err)
	}

	return resp, nil
}

// StopAlarm clears the active alarm.
func (c *Client) StopAlarm(ctx context.Context, actor *pb.Actor) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.StopAlarm(callCtx, newRequest(actor))
	if err != nil {
		return nil, fmt.Errorf("stop alarm: %w", err)
	}

	return resp, nil
}

// Connect asks the bridge to open the serial link and returns the port name.
func (c *Client) Connect(ctx context.Context) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Connect(callCtx, new(emptypb.Empty))
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}

	return resp.GetFields()[pb.KeyPort].GetStringValue(), nil
}

// Disconnect asks the bridge to close the serial link.
func (c *Client) Disconnect(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Disconnect(callCtx, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

// SendRaw writes one line to the device.
func (c *Client) SendRaw(ctx context.Context, text string) error {
	if text == "" {
		return errTextRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.SendRaw(callCtx, wrapperspb.String(text)); err != nil {
		return fmt.Errorf("send raw: %w", err)
	}

	return nil
}

// WatchEvents calls fn for every event until ctx is done or the bridge
// closes the stream. The call timeout does not apply.
func (c *Client) WatchEvents(ctx context.Context, fn func(domain.Event)) error {
	stream, err := c.api.WatchEvents(ctx, new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("watch events: %w", err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("receive event: %w", err)
		}

		fn(pb.EventFromStruct(msg))
	}
}

// newRequest builds a control request carrying actor.
func newRequest(actor *pb.Actor) *structpb.Struct {
	request := &structpb.Struct{Fields: make(map[string]*structpb.Value)}
	if actor != nil {
		request.Fields[pb.KeyRequestedBy] = pb.ActorToValue(actor)
	}

	return request
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
