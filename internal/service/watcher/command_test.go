package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

// TestHandle_FiltersKinds passes only the selected kinds on.
func TestHandle_FiltersKinds(t *testing.T) {
	t.Parallel()

	var got []domain.EventKind

	opts := &Options{
		Kinds:   []domain.EventKind{domain.EventAlarmActivated},
		OnEvent: func(ev domain.Event) { got = append(got, ev.Kind) },
	}

	for _, kind := range []domain.EventKind{
		domain.EventLineReceived,
		domain.EventAlarmActivated,
		domain.EventHandshakeComplete,
	} {
		handle(context.Background(), opts, domain.Event{Kind: kind})
	}

	require.Equal(t, []domain.EventKind{domain.EventAlarmActivated}, got)
}

// TestHandle_AllKinds passes everything on when no filter is set.
func TestHandle_AllKinds(t *testing.T) {
	t.Parallel()

	count := 0
	opts := &Options{OnEvent: func(domain.Event) { count++ }}

	handle(context.Background(), opts, domain.Event{Kind: domain.EventAlarmDeactivated})
	handle(context.Background(), opts, domain.Event{Kind: "custom"})

	require.Equal(t, 2, count)
}
