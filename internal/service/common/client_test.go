//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestSendRaw_EmptyText asserts that empty text is rejected before any call.
func TestSendRaw_EmptyText(t *testing.T) {
	t.Parallel()

	c := new(Client)

	err := c.SendRaw(context.Background(), "")
	require.ErrorIs(t, err, errTextRequired)
}

// stubServer echoes requests back so the client encoding can be checked.
type stubServer struct {
	pb.UnimplementedAlarmBridgeServer

	events []domain.Event
}

func (*stubServer) StopAlarm(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return req, nil
}

func (*stubServer) TriggerTestAlarm(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return req, nil
}

func (s *stubServer) WatchEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	for _, ev := range s.events {
		if err := stream.Send(pb.EventToStruct(ev)); err != nil {
			return err
		}
	}

	return nil
}

func dialStub(t *testing.T, srv pb.AlarmBridgeServer) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	gs := grpc.NewServer()
	pb.RegisterAlarmBridgeServer(gs, srv)

	go func() { _ = gs.Serve(lis) }()

	c, err := Dial(context.Background(), "passthrough:///bufnet",
		WithCallTimeout(5*time.Second),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		gs.Stop()
	})

	return c
}

// TestClient_RequestsCarryActor checks that control calls attach requested_by and details.
func TestClient_RequestsCarryActor(t *testing.T) {
	t.Parallel()

	c := dialStub(t, new(stubServer))
	actor := &pb.Actor{Hostname: "ward-pc", Username: "nurse"}

	resp, err := c.StopAlarm(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, actor, pb.ActorFromStruct(resp))

	resp, err = c.TriggerTestAlarm(context.Background(), nil, map[string]any{"room": "204"})
	require.NoError(t, err)
	require.Nil(t, pb.ActorFromStruct(resp))
	require.Equal(t, "204", resp.GetFields()[pb.KeyDetails].GetStructValue().GetFields()["room"].GetStringValue())
}

// TestClient_UnimplementedCall wraps the transport error.
func TestClient_UnimplementedCall(t *testing.T) {
	t.Parallel()

	c := dialStub(t, new(stubServer))

	_, err := c.Connect(context.Background())
	require.ErrorContains(t, err, "connect")
}

// TestClient_WatchEvents delivers every streamed event and ends cleanly.
func TestClient_WatchEvents(t *testing.T) {
	t.Parallel()

	want := []domain.Event{
		{Kind: domain.EventAlarmActivated, AlarmID: "a1", Source: "Button Press"},
		{Kind: domain.EventAlarmDeactivated},
	}
	c := dialStub(t, &stubServer{events: want})

	var got []domain.Event

	require.NoError(t, c.WatchEvents(context.Background(), func(ev domain.Event) {
		got = append(got, ev)
	}))
	require.Equal(t, want, got)
}
