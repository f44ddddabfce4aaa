package trigger

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRouter_WebhookEventMatchesSubscriptionAndPublishes(t *testing.T) {
	webhook := NewWebhookAdapter("orders-webhook")

	var mu sync.Mutex
	var published []Message

	router := NewRouter(func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, msg)
		return nil
	})
	router.Register(webhook)
	router.Subscribe(Subscription{
		Filter: func(e Event) bool { return e.Type == "order.created" },
		Transform: func(e Event) (Message, error) {
			return Message{MessageID: e.ID, ActorType: "order", MessageType: e.Type, Payload: e.Data}, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	webhook.Ingest(Event{ID: "evt-1", Type: "order.created", Data: map[string]interface{}{"orderId": "o1"}})
	webhook.Ingest(Event{ID: "evt-2", Type: "order.shipped"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(published)
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 {
		t.Fatalf("expected exactly 1 published message (order.shipped filtered out), got %d: %+v", len(published), published)
	}
	if published[0].MessageID != "evt-1" {
		t.Fatalf("expected evt-1 to be published, got %+v", published[0])
	}
}

func TestTimerAdapter_EmitsOnInterval(t *testing.T) {
	adapter := NewTimerAdapter("heartbeat", 20*time.Millisecond)

	var mu sync.Mutex
	var events []Event
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = adapter.Run(ctx, func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		})
	}()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 2 {
		t.Fatalf("expected at least 2 ticks in 120ms at a 20ms interval, got %d", len(events))
	}
	if events[0].Type != "timer.tick" || events[0].Source != "heartbeat" {
		t.Fatalf("unexpected event shape: %+v", events[0])
	}
}
