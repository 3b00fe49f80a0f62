package bus

import (
	"context"
	"testing"
	"time"

	"github.com/YunGuard/YunGuard/internal/event"
)

func TestPublishConsume(t *testing.T) {
	b := NewEventBus()
	b.Publish(&event.Inbound{Type: event.TypeMessageNormal})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	in, err := b.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if in.Type != event.TypeMessageNormal {
		t.Errorf("type = %q", in.Type)
	}
	if in.TraceID == "" {
		t.Error("expected trace ID to be stamped")
	}
	if in.Received.IsZero() {
		t.Error("expected receive timestamp to be stamped")
	}
}

func TestConsumeCancelled(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Consume(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
