package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

func runPublisher(t *testing.T, client *mockClient, kinds ...domain.EventKind) (chan<- domain.Event, <-chan error) {
	t.Helper()

	p := New(Options{Broker: "localhost:1883", Topic: "ward/alarms", Kinds: kinds})
	p.client = client

	events := make(chan domain.Event, 8)
	result := make(chan error, 1)

	go func() {
		result <- p.Run(t.Context(), events)
	}()

	return events, result
}

// TestPublisher_PublishesFilteredEvents sends alarm events and skips raw lines.
func TestPublisher_PublishesFilteredEvents(t *testing.T) {
	t.Parallel()

	client := new(mockClient)
	events, result := runPublisher(t, client)

	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	events <- domain.Event{Kind: domain.EventLineReceived, Raw: "STATUS: ok", Timestamp: at}
	events <- domain.Event{
		Kind:      domain.EventAlarmActivated,
		Timestamp: at,
		AlarmID:   "a1",
		Source:    "Button Press",
		Patient:   "Jane Doe",
		Room:      "204",
		Device:    "ESP01",
	}
	close(events)

	require.NoError(t, <-result)

	msgs := client.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ward/alarms/alarm_activated", msgs[0].topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload.([]byte), &got))
	require.Equal(t, "a1", got["alarm_id"])
	require.Equal(t, "Jane Doe", got["patient"])
	require.Equal(t, "2025-03-14T09:00:00Z", got["timestamp"])
	require.NotContains(t, got, "raw")

	require.Equal(t, 1, client.disconnectCalls())
}

// TestPublisher_CustomKinds publishes exactly the configured kinds.
func TestPublisher_CustomKinds(t *testing.T) {
	t.Parallel()

	client := new(mockClient)
	events, result := runPublisher(t, client, domain.EventLineReceived)

	events <- domain.Event{Kind: domain.EventAlarmActivated}
	events <- domain.Event{Kind: domain.EventLineReceived, Raw: "hello"}
	close(events)

	require.NoError(t, <-result)
	require.Len(t, client.messages(), 1)
	require.Equal(t, "ward/alarms/line_received", client.messages()[0].topic)
}

// TestPublisher_ConnectError is returned to the caller.
func TestPublisher_ConnectError(t *testing.T) {
	t.Parallel()

	client := &mockClient{connectErr: errors.New("connection refused")}
	_, result := runPublisher(t, client)

	require.ErrorContains(t, <-result, "connection refused")
}

// TestPublisher_PublishErrorIsLogged keeps running after a failed publish.
func TestPublisher_PublishErrorIsLogged(t *testing.T) {
	t.Parallel()

	client := &mockClient{publishErr: errors.New("not connected")}
	events, result := runPublisher(t, client)

	events <- domain.Event{Kind: domain.EventAlarmDeactivated}
	events <- domain.Event{Kind: domain.EventAlarmDeactivated}
	close(events)

	require.NoError(t, <-result)
	require.Empty(t, client.messages())
}

// TestPublisher_StopsOnCancel returns nil when the context ends.
func TestPublisher_StopsOnCancel(t *testing.T) {
	t.Parallel()

	client := new(mockClient)
	p := New(Options{Broker: "localhost:1883", Topic: "t"})
	p.client = client

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, p.Run(ctx, make(chan domain.Event)))
	require.False(t, client.IsConnected())
	require.Equal(t, DefaultKinds(), p.opts.Kinds)
}
