package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/loomrun/loom/actor"
	"github.com/loomrun/loom/errs"
)

type waitKey struct {
	id        actor.Identity
	eventName string
}

// EventBroker implements actor.EventWaiter by fanning events published
// via Publish (typically from a Router subscription that recognizes a
// waitForEvent-shaped Event) to whichever invocation is currently
// parked in Await for the same (Identity, eventName), using a
// register/unregister-by-key map of waiters.
type EventBroker struct {
	mu      sync.Mutex
	waiters map[waitKey]chan interface{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{waiters: make(map[waitKey]chan interface{})}
}

// Await blocks until Publish delivers a payload for (id, eventName), ctx
// is cancelled, or timeout elapses.
func (b *EventBroker) Await(ctx context.Context, id actor.Identity, eventName string, timeout time.Duration) (interface{}, error) {
	key := waitKey{id: id, eventName: eventName}
	ch := make(chan interface{}, 1)

	b.mu.Lock()
	b.waiters[key] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.waiters, key)
		b.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-ch:
		return payload, nil
	case <-timer.C:
		return nil, errs.Timeout("waitForEvent " + eventName + " for " + id.String())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Publish delivers payload to the invocation parked awaiting eventName
// for id, if any. An event with no waiter is dropped, not buffered.
func (b *EventBroker) Publish(id actor.Identity, eventName string, payload interface{}) {
	key := waitKey{id: id, eventName: eventName}
	b.mu.Lock()
	ch, ok := b.waiters[key]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- payload:
	default:
	}
}

var _ actor.EventWaiter = (*EventBroker)(nil)
