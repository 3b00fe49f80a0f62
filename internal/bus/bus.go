// Package bus provides the async event bus between the webhook listener
// and the bot core. A single consumer drains the queue, which gives the
// process one logical event loop: handlers for the same group never run
// concurrently with each other.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YunGuard/YunGuard/internal/event"
)

// EventBus decouples the webhook handler from the bot loop.
type EventBus struct {
	inbound chan *event.Inbound
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		inbound: make(chan *event.Inbound, 100),
	}
}

// Publish enqueues a validated inbound event. A trace ID and receive
// timestamp are stamped on if missing.
func (b *EventBus) Publish(in *event.Inbound) {
	if in.TraceID == "" {
		in.TraceID = uuid.NewString()
	}
	if in.Received.IsZero() {
		in.Received = time.Now()
	}
	b.inbound <- in
}

// Consume blocks until an event is available or the context is cancelled.
func (b *EventBus) Consume(ctx context.Context) (*event.Inbound, error) {
	select {
	case in := <-b.inbound:
		return in, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of pending events.
func (b *EventBus) Size() int {
	return len(b.inbound)
}
