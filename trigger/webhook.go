package trigger

import "context"

// WebhookAdapter accepts already-decoded Events pushed by a caller (the
// concrete HTTP parsing layer is out of scope) and feeds
// them into a Router. Ingest is safe to call concurrently from any
// number of request handlers.
type WebhookAdapter struct {
	source string
	events chan Event
}

// NewWebhookAdapter builds a WebhookAdapter identifying itself as
// source in every Event it forwards.
func NewWebhookAdapter(source string) *WebhookAdapter {
	return &WebhookAdapter{source: source, events: make(chan Event, 256)}
}

// Ingest accepts one decoded envelope. Source is stamped if e.Source is
// empty, so callers don't need to know their own adapter's identity.
func (w *WebhookAdapter) Ingest(e Event) {
	if e.Source == "" {
		e.Source = w.source
	}
	w.events <- e
}

// Run forwards every ingested Event to emit until ctx is cancelled.
func (w *WebhookAdapter) Run(ctx context.Context, emit func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-w.events:
			emit(e)
		}
	}
}
