// Package broker fans collaborator events out to any number of subscribers
// without ever blocking the publisher.
package broker

import (
	"context"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

// Broker broadcasts events. A subscriber whose buffer is full misses the event.
type Broker struct {
	//nolint:containedctx // logging scope for drops, which happen on the publisher's goroutine.
	ctx         context.Context
	subscribers map[int]chan domain.Event
	mu          syncutil.RWMutex
	nextID      int
	closed      bool
}

// New creates a broker with no subscribers.
func New(ctx context.Context) *Broker {
	return &Broker{
		ctx:         logger.WithName(ctx, "broker"),
		subscribers: make(map[int]chan domain.Event),
	}
}

// Publish sends ev to every subscriber with room for it.
func (b *Broker) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			logger.WarnKV(b.ctx, "Subscriber channel full, dropping event",
				"subscriber_id", id, "kind", ev.Kind)
		}
	}
}

// Subscribe registers a subscriber with a buffer of bufferSize events.
// After Close the returned channel is already closed.
func (b *Broker) Subscribe(bufferSize int) (events <-chan domain.Event, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Event, bufferSize)

	id = b.nextID
	b.nextID++

	if b.closed {
		close(ch)

		return ch, id
	}

	b.subscribers[id] = ch

	logger.DebugKV(b.ctx, "Subscriber registered", "subscriber_id", id, "buffer_size", bufferSize)

	return ch, id
}

// Unsubscribe removes a subscriber and closes its channel. Repeated calls are no-ops.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
		logger.DebugKV(b.ctx, "Subscriber removed", "subscriber_id", id)
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}

	b.closed = true
}
