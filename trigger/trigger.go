// Package trigger normalizes external event sources into the actor
// runtime's Message shape: a ticker-loop adapter (TimerAdapter) and a
// connection-registration adapter (StreamAdapter) that both produce
// inbound Events for the dispatcher to consume.
package trigger

import (
	"context"
	"log"
	"time"
)

// Event is the normalized envelope every Adapter produces.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Data      interface{}       `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Adapter is an external event source. Run blocks, invoking emit for
// every Event it produces, until ctx is cancelled or the source is
// exhausted.
type Adapter interface {
	Run(ctx context.Context, emit func(Event)) error
}

// Filter reports whether e should be routed through a Subscription's
// Transform. A nil Filter matches every Event.
type Filter func(e Event) bool

// Transform turns a matched Event into a Message ready for
// queue.Port.Publish.
type Transform func(e Event) (Message, error)

// Message mirrors the actor package's Message shape without importing
// it, so trigger stays usable without pulling in actor's journal/state
// dependencies; Router callers convert at the publish boundary (see
// cmd/loomd's wiring).
type Message struct {
	MessageID      string
	TenantID       string
	ActorType      string
	ActorID        string
	MessageType    string
	CorrelationID  string
	Payload        interface{}
	IdempotencyKey string
}

// Subscription pairs a Filter with the Transform to apply on a match.
type Subscription struct {
	Filter    Filter
	Transform Transform
}

// Publisher is the narrow slice of queue.Port a Router needs.
type Publisher func(ctx context.Context, msg Message) error

// Router fans Events from every registered Adapter through every
// registered Subscription, publishing each Transform hit.
//
// One goroutine per source, all funneling through a shared,
// mutex-free in-process channel.
type Router struct {
	adapters []Adapter
	subs     []Subscription
	publish  Publisher
	events   chan Event
}

// NewRouter builds a Router that publishes matched Events via publish.
func NewRouter(publish Publisher) *Router {
	return &Router{
		publish: publish,
		events:  make(chan Event, 256),
	}
}

// Register adds an Adapter to be started by Run.
func (r *Router) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// Subscribe adds a Subscription evaluated against every Event from
// every registered Adapter.
func (r *Router) Subscribe(sub Subscription) {
	r.subs = append(r.subs, sub)
}

// Run starts every registered Adapter and the dispatch loop, blocking
// until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	for _, a := range r.adapters {
		adapter := a
		go func() {
			if err := adapter.Run(ctx, r.emit); err != nil && ctx.Err() == nil {
				log.Printf("trigger: adapter stopped: %v", err)
			}
		}()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-r.events:
			r.dispatch(ctx, e)
		}
	}
}

func (r *Router) emit(e Event) {
	select {
	case r.events <- e:
	default:
		// Drop under backpressure rather than block the adapter's own
		// goroutine; a full channel means the dispatch loop is behind.
	}
}

func (r *Router) dispatch(ctx context.Context, e Event) {
	for _, sub := range r.subs {
		if sub.Filter != nil && !sub.Filter(e) {
			continue
		}
		msg, err := sub.Transform(e)
		if err != nil {
			log.Printf("trigger: transform failed for event %s: %v", e.ID, err)
			continue
		}
		if err := r.publish(ctx, msg); err != nil {
			log.Printf("trigger: publish failed for event %s: %v", e.ID, err)
		}
	}
}
