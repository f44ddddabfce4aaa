package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/loomrun/loom/actor"
)

func TestEventBroker_PublishDeliversToAwaitingCall(t *testing.T) {
	broker := NewEventBroker()
	id := actor.Identity{TenantID: "acme", ActorType: "order", ActorID: "o1"}

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)
	go func() {
		payload, err := broker.Await(context.Background(), id, "approved", time.Second)
		resultCh <- payload
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	broker.Publish(id, "approved", map[string]interface{}{"by": "mgr-1"})

	select {
	case payload := <-resultCh:
		if err := <-errCh; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m, ok := payload.(map[string]interface{})
		if !ok || m["by"] != "mgr-1" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Publish")
	}
}

func TestEventBroker_AwaitTimesOutWithoutPublish(t *testing.T) {
	broker := NewEventBroker()
	id := actor.Identity{TenantID: "acme", ActorType: "order", ActorID: "o2"}

	_, err := broker.Await(context.Background(), id, "approved", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestEventBroker_PublishWithNoWaiterIsDropped(t *testing.T) {
	broker := NewEventBroker()
	id := actor.Identity{TenantID: "acme", ActorType: "order", ActorID: "o3"}
	broker.Publish(id, "approved", "ignored")
}
