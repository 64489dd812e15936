package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

// TestBroker_Fanout delivers each event to every subscriber.
func TestBroker_Fanout(t *testing.T) {
	t.Parallel()

	b := New(t.Context())
	first, _ := b.Subscribe(4)
	second, _ := b.Subscribe(4)

	b.Publish(domain.Event{Kind: domain.EventAlarmActivated, AlarmID: "a1"})

	require.Equal(t, "a1", (<-first).AlarmID)
	require.Equal(t, "a1", (<-second).AlarmID)
}

// TestBroker_SlowSubscriberDropped never blocks the publisher.
func TestBroker_SlowSubscriberDropped(t *testing.T) {
	t.Parallel()

	b := New(t.Context())
	events, _ := b.Subscribe(1)

	b.Publish(domain.Event{Kind: domain.EventLineReceived, Raw: "one"})
	b.Publish(domain.Event{Kind: domain.EventLineReceived, Raw: "two"})

	require.Equal(t, "one", (<-events).Raw)
	require.Empty(t, events)
}

// TestBroker_UnsubscribeAndClose closes channels exactly once.
func TestBroker_UnsubscribeAndClose(t *testing.T) {
	t.Parallel()

	b := New(t.Context())
	events, id := b.Subscribe(1)

	b.Unsubscribe(id)
	b.Unsubscribe(id)

	_, ok := <-events
	require.False(t, ok)

	kept, _ := b.Subscribe(1)
	b.Close()

	_, ok = <-kept
	require.False(t, ok)

	late, _ := b.Subscribe(1)
	_, ok = <-late
	require.False(t, ok)

	b.Publish(domain.Event{Kind: domain.EventAlarmDeactivated})
}
